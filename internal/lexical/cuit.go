package lexical

import (
	"regexp"
	"strings"
)

// cuitWeights is the official check-digit weight sequence for CUIT/CUIL.
var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

var (
	labeledCUITPattern = regexp.MustCompile(`(?i)(?:CUIT|CUIL)[\s.:#Nº°-]*(\d{2}-?\d{8}-?\d)`)
	dashedCUITPattern  = regexp.MustCompile(`\b(\d{2})-(\d{8})-(\d)\b`)
	digitRunPattern    = regexp.MustCompile(`\d{11,}`)
)

// ValidCUIT reports whether s is an 11-digit CUIT/CUIL with a correct
// check digit (mod-11 algorithm).
func ValidCUIT(s string) bool {
	s = digitsOnly(s)
	if len(s) != 11 {
		return false
	}

	sum := 0
	for i := 0; i < 10; i++ {
		sum += int(s[i]-'0') * cuitWeights[i]
	}

	check := 11 - sum%11
	switch check {
	case 11:
		check = 0
	case 10:
		// No valid CUIT has a check value of 10.
		return false
	}
	return check == int(s[10]-'0')
}

// ExtractCUIT pulls an 11-digit tax identifier out of free text, trying
// progressively weaker patterns:
//
//  1. an explicitly labeled identifier ("CUIT 30-70907678-3", "CUIL: ...")
//  2. the dashed XX-XXXXXXXX-X form anywhere in the text
//  3. any 11-digit run that passes check-digit validation, including runs
//     embedded inside longer digit sequences
//
// Returns the bare 11 digits, or an empty string when nothing qualifies.
func ExtractCUIT(text string) string {
	if m := labeledCUITPattern.FindStringSubmatch(text); m != nil {
		if candidate := digitsOnly(m[1]); ValidCUIT(candidate) {
			return candidate
		}
	}

	if m := dashedCUITPattern.FindStringSubmatch(text); m != nil {
		candidate := m[1] + m[2] + m[3]
		if ValidCUIT(candidate) {
			return candidate
		}
	}

	for _, run := range digitRunPattern.FindAllString(text, -1) {
		for i := 0; i+11 <= len(run); i++ {
			candidate := run[i : i+11]
			if ValidCUIT(candidate) {
				return candidate
			}
		}
	}

	return ""
}

// DNIMatchesCUIT reports whether a bare DNI (7 or 8 digits) corresponds to
// the middle segment of the given CUIT/CUIL.
func DNIMatchesCUIT(dni, cuit string) bool {
	dni = digitsOnly(dni)
	cuit = digitsOnly(cuit)
	if len(cuit) != 11 {
		return false
	}
	if len(dni) < 7 || len(dni) > 8 {
		return false
	}

	middle := strings.TrimLeft(cuit[2:10], "0")
	return strings.TrimLeft(dni, "0") == middle
}

// SameTaxID compares two tax identifiers ignoring separators, treating a
// 7-8 digit DNI on either side as the short form of the other's CUIT.
func SameTaxID(a, b string) bool {
	da, db := digitsOnly(a), digitsOnly(b)
	if da == "" || db == "" {
		return false
	}
	if da == db {
		return true
	}
	return DNIMatchesCUIT(da, db) || DNIMatchesCUIT(db, da)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
