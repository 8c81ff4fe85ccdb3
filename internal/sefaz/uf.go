package sefaz

import (
	"fmt"
	"strings"
)

// ufCodes maps a state acronym to its IBGE code (cUF).
var ufCodes = map[string]string{
	"RO": "11", "AC": "12", "AM": "13", "RR": "14", "PA": "15", "AP": "16", "TO": "17",
	"MA": "21", "PI": "22", "CE": "23", "RN": "24", "PB": "25", "PE": "26", "AL": "27", "SE": "28", "BA": "29",
	"MG": "31", "ES": "32", "RJ": "33", "SP": "35",
	"PR": "41", "SC": "42", "RS": "43",
	"MS": "50", "MT": "51", "GO": "52", "DF": "53",
}

// CodeOfUF returns the cUF of a state acronym.
func CodeOfUF(uf string) (string, error) {
	code, ok := ufCodes[strings.ToUpper(strings.TrimSpace(uf))]
	if !ok {
		return "", fmt.Errorf("unknown UF %q", uf)
	}
	return code, nil
}

// UFOfCode returns the state acronym of a cUF.
func UFOfCode(code string) (string, error) {
	for uf, c := range ufCodes {
		if c == code {
			return uf, nil
		}
	}
	return "", fmt.Errorf("unknown cUF %q", code)
}
