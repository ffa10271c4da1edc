/*
Copyright 2026 TradeFlow Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package fingerprint computes stable content fingerprints over the
// identity-defining subset of an action payload, and sanitizes the
// human-readable preview summaries stored alongside them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/gowebpki/jcs"
)

// Compute produces a hex-encoded SHA-256 digest over the selected payload
// fields. The selection is serialized through the JSON Canonicalization
// Scheme (RFC 8785) so two payloads with equivalent identity fields hash
// identically regardless of key ordering or whitespace. An empty field list
// fingerprints the whole payload.
func Compute(payload json.RawMessage, fields []string) (string, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	subject := payload
	if len(fields) > 0 {
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(payload, &doc); err != nil {
			return "", fmt.Errorf("payload is not a JSON object: %w", err)
		}

		selected := make(map[string]json.RawMessage, len(fields))
		names := append([]string(nil), fields...)
		sort.Strings(names)
		for _, name := range names {
			if value, ok := doc[name]; ok {
				selected[name] = value
			}
		}

		encoded, err := json.Marshal(selected)
		if err != nil {
			return "", err
		}
		subject = encoded
	}

	canonical, err := jcs.Transform(subject)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}

	digest := sha256.Sum256(canonical)
	return hex.EncodeToString(digest[:]), nil
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ibanPattern  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{8,30}\b`)
	digitPattern = regexp.MustCompile(`\d{5,}`)
)

// MaskSummary replaces email addresses, IBAN-like account numbers and long
// digit runs (amounts, document numbers) in a preview summary. The summary
// is display-only; masking it is a privacy control, not a correctness one.
func MaskSummary(summary string) string {
	masked := emailPattern.ReplaceAllStringFunc(summary, maskEmail)
	masked = ibanPattern.ReplaceAllStringFunc(masked, func(s string) string {
		return s[:4] + strings.Repeat("*", len(s)-4)
	})
	masked = digitPattern.ReplaceAllStringFunc(masked, func(s string) string {
		return strings.Repeat("*", len(s)-2) + s[len(s)-2:]
	})
	return masked
}

// CapSummary truncates a summary to maxLen runes, appending an ellipsis when
// it had to cut.
func CapSummary(summary string, maxLen int) string {
	if maxLen <= 0 {
		return summary
	}
	runes := []rune(summary)
	if len(runes) <= maxLen {
		return summary
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func maskEmail(address string) string {
	at := strings.Index(address, "@")
	if at <= 1 {
		return "***" + address[at:]
	}
	return address[:1] + strings.Repeat("*", at-1) + address[at:]
}
