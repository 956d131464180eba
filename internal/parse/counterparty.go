package parse

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/hanqizheng/mailfacts/internal/message"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Salutation and signature patterns, tried in order. The first submatch is
// the candidate name.
var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dear\s+(?:mr\.?\s+|ms\.?\s+|mrs\.?\s+)?([^\s,，:：]{2,40}(?:\s+[^\s,，:：]{1,40})?)\s*[,，:：]`),
	regexp.MustCompile(`(?i)hi\s+([^\s,，:：]{2,40})\s*[,，]`),
	regexp.MustCompile(`尊敬的([^\s，,：:先生女士]{1,20})`),
	regexp.MustCompile(`(?i)(?:best regards|kind regards|warm regards|sincerely|regards|thanks)\s*[,，]?\s+([^\s,，]{2,40}(?:\s+[^\s,，]{1,40})?)\b`),
	regexp.MustCompile(`(?:此致|顺祝商祺|敬上)\s*[,，]?\s*([^\s，,]{2,20})`),
}

// Generic mailbox terms that disqualify a name candidate.
var genericNameTerms = []string{
	"team", "support", "noreply", "no-reply", "admin",
	"service", "notification", "postmaster", "mailer-daemon",
}

// ExtractCounterparty determines the external party's email and display
// name from decoded headers, falling back to body scans when headers are
// insufficient. Purely deterministic.
func ExtractCounterparty(msg *message.Message, body string, platformDomains []string) CounterpartyInfo {
	var info CounterpartyInfo

	if isPlatformAddress(msg.From.Address, platformDomains) {
		// Outbound platform mail: the counterparty is the first
		// off-platform recipient.
		for _, rcpt := range msg.Recipients {
			if rcpt.Address == "" || isPlatformAddress(rcpt.Address, platformDomains) {
				continue
			}
			info.Email = rcpt.Address
			if isPlausibleName(rcpt.Name) {
				info.Name = strings.TrimSpace(rcpt.Name)
			}
			break
		}
	} else if msg.From.Address != "" {
		info.Email = msg.From.Address
		if isPlausibleName(msg.From.Name) {
			info.Name = strings.TrimSpace(msg.From.Name)
		}
	}

	if info.Email == "" {
		info.Email = findBodyEmail(body, platformDomains)
	}
	if info.Name == "" {
		info.Name = findBodyName(body)
	}

	return info
}

func isPlatformAddress(addr string, platformDomains []string) bool {
	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return false
	}
	domain := strings.ToLower(parts[1])
	for _, d := range platformDomains {
		if domain == strings.ToLower(d) {
			return true
		}
	}
	return false
}

// findBodyEmail returns the first address in the body whose domain is not
// a platform domain.
func findBodyEmail(body string, platformDomains []string) string {
	for _, addr := range emailRegex.FindAllString(body, -1) {
		if !isPlatformAddress(addr, platformDomains) {
			return addr
		}
	}
	return ""
}

// findBodyName scans salutation/signature patterns in order and returns
// the first candidate that passes the plausibility check.
func findBodyName(body string) string {
	for _, pattern := range namePatterns {
		matches := pattern.FindStringSubmatch(body)
		if len(matches) < 2 {
			continue
		}
		candidate := strings.TrimSpace(matches[1])
		if isPlausibleName(candidate) {
			return candidate
		}
	}
	return ""
}

// isPlausibleName rejects empty, overlong, letterless, and generic-mailbox
// candidates.
func isPlausibleName(name string) bool {
	name = strings.TrimSpace(name)
	if n := len([]rune(name)); n < 2 || n > 100 {
		return false
	}

	hasLetter := false
	for _, r := range name {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return false
	}

	lower := strings.ToLower(name)
	for _, term := range genericNameTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}
