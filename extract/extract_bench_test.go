package extract

import (
	"strings"
	"testing"

	"github.com/dhcgn/imap-otp/model"
)

// BenchmarkExtractor_TryExtract_Labeled benchmarks a short body with a labeled code
func BenchmarkExtractor_TryExtract_Labeled(b *testing.B) {
	e, err := New(DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}

	msg := model.CandidateMessage{
		Sender:  "noreply@uber.com",
		Subject: "Your Uber verification code",
		Body:    "Your verification code is 482913. Never share this code.",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.TryExtract(msg)
	}
}

// BenchmarkExtractor_TryExtract_LargeStandalone benchmarks a large body where only the fallback rule matches
func BenchmarkExtractor_TryExtract_LargeStandalone(b *testing.B) {
	e, err := New(DefaultOptions())
	if err != nil {
		b.Fatal(err)
	}

	msg := model.CandidateMessage{
		Sender: "noreply@uber.com",
		Body:   strings.Repeat("Thanks for riding with us. ", 2000) + "9065",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.TryExtract(msg)
	}
}
