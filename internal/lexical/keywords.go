package lexical

import (
	"strings"
	"unicode"
)

// bankingStopwords are generic terms that appear on almost every statement
// line and therefore carry no matching signal.
var bankingStopwords = map[string]bool{
	"TRANSFERENCIA": true,
	"TRANSFERENCI":  true,
	"TRANSF":        true,
	"PAGO":          true,
	"PAGOS":         true,
	"DEBITO":        true,
	"CREDITO":       true,
	"AUTOMATICO":    true,
	"INMEDIATA":     true,
	"RECIBIDA":      true,
	"ENVIADA":       true,
	"BANCO":         true,
	"CUENTA":        true,
	"CTA":           true,
	"CBU":           true,
	"ALIAS":         true,
	"VARIOS":        true,
	"COMPRA":        true,
	"SERVICIO":      true,
	"SERVICIOS":     true,
	"OPERACION":     true,
	"REFERENCIA":    true,
}

var accentReplacer = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N",
	"á", "A", "é", "E", "í", "I", "ó", "O", "ú", "U", "ü", "U", "ñ", "N",
)

// NormalizeText uppercases a string and strips Spanish accents so that
// tokens compare reliably across extraction sources.
func NormalizeText(s string) string {
	return accentReplacer.Replace(strings.ToUpper(strings.TrimSpace(s)))
}

// Tokenize splits a bank concept into matching keywords. Tokens are split on
// whitespace and punctuation, then again at digit/letter boundaries (so
// "20751CUOTA" yields "CUOTA"). Tokens shorter than three characters, purely
// numeric tokens, and generic banking jargon are dropped.
func Tokenize(concept string) []string {
	normalized := NormalizeText(concept)

	rough := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, piece := range rough {
		for _, token := range splitDigitBoundaries(piece) {
			if len(token) < 3 {
				continue
			}
			if isNumeric(token) {
				continue
			}
			if bankingStopwords[token] {
				continue
			}
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// KeywordScore scores concept tokens against an issuer name and free-text
// description: 2 points per token found as a substring of the name, plus 2
// per token found in the description. A score of at least MinKeywordScore
// qualifies as a keyword match.
func KeywordScore(tokens []string, name, description string) int {
	normName := NormalizeText(name)
	normDesc := NormalizeText(description)

	score := 0
	for _, token := range tokens {
		if normName != "" && strings.Contains(normName, token) {
			score += 2
		}
		if normDesc != "" && strings.Contains(normDesc, token) {
			score += 2
		}
	}
	return score
}

// MinKeywordScore is the threshold at which a keyword overlap counts as a
// match signal.
const MinKeywordScore = 2

// NameOverlaps reports whether two party names plausibly refer to the same
// entity: one normalized name contains the other, or they share a token of
// four or more characters.
func NameOverlaps(a, b string) bool {
	na, nb := NormalizeText(a), NormalizeText(b)
	if na == "" || nb == "" {
		return false
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	for _, token := range Tokenize(a) {
		if len(token) >= 4 && strings.Contains(nb, token) {
			return true
		}
	}
	return false
}

func splitDigitBoundaries(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	start := 0
	for i := 1; i < len(s); i++ {
		prevDigit := s[i-1] >= '0' && s[i-1] <= '9'
		currDigit := s[i] >= '0' && s[i] <= '9'
		if prevDigit != currDigit {
			parts = append(parts, s[start:i])
			start = i
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
