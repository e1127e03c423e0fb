// Package teams normalises NBA team abbreviations and names.
package teams

import "strings"

// abbreviationToName maps canonical abbreviations to full names.
var abbreviationToName = map[string]string{
	"ATL": "Atlanta Hawks",
	"BOS": "Boston Celtics",
	"BKN": "Brooklyn Nets",
	"CHA": "Charlotte Hornets",
	"CHI": "Chicago Bulls",
	"CLE": "Cleveland Cavaliers",
	"DAL": "Dallas Mavericks",
	"DEN": "Denver Nuggets",
	"DET": "Detroit Pistons",
	"GSW": "Golden State Warriors",
	"HOU": "Houston Rockets",
	"IND": "Indiana Pacers",
	"LAC": "Los Angeles Clippers",
	"LAL": "Los Angeles Lakers",
	"MEM": "Memphis Grizzlies",
	"MIA": "Miami Heat",
	"MIL": "Milwaukee Bucks",
	"MIN": "Minnesota Timberwolves",
	"NOP": "New Orleans Pelicans",
	"NYK": "New York Knicks",
	"OKC": "Oklahoma City Thunder",
	"ORL": "Orlando Magic",
	"PHI": "Philadelphia 76ers",
	"PHX": "Phoenix Suns",
	"POR": "Portland Trail Blazers",
	"SAC": "Sacramento Kings",
	"SAS": "San Antonio Spurs",
	"TOR": "Toronto Raptors",
	"UTA": "Utah Jazz",
	"WAS": "Washington Wizards",
}

// synonyms maps alternate provider abbreviations to canonical ones.
var synonyms = map[string]string{
	"GS":   "GSW",
	"NO":   "NOP",
	"NOR":  "NOP",
	"NY":   "NYK",
	"SA":   "SAS",
	"PHO":  "PHX",
	"UTAH": "UTA",
	"WSH":  "WAS",
	"BRK":  "BKN",
	"CHO":  "CHA",
}

// nameToAbbreviation is built from abbreviationToName, keyed lower case.
var nameToAbbreviation = map[string]string{}

func init() {
	for abbr, name := range abbreviationToName {
		nameToAbbreviation[strings.ToLower(name)] = abbr
	}
}

// Normalize returns the canonical abbreviation for an abbreviation, synonym
// or full team name. Unknown input is returned upper-cased and trimmed.
func Normalize(s string) string {
	key := strings.ToUpper(strings.TrimSpace(s))
	if _, ok := abbreviationToName[key]; ok {
		return key
	}
	if abbr, ok := synonyms[key]; ok {
		return abbr
	}
	if abbr, ok := nameToAbbreviation[strings.ToLower(strings.TrimSpace(s))]; ok {
		return abbr
	}
	return key
}

// Name returns the full team name, or the input if unknown.
func Name(abbr string) string {
	if name, ok := abbreviationToName[Normalize(abbr)]; ok {
		return name
	}
	return abbr
}

// Known reports whether s resolves to one of the 30 franchises.
func Known(s string) bool {
	_, ok := abbreviationToName[Normalize(s)]
	return ok
}

// Count returns the number of franchises.
func Count() int {
	return len(abbreviationToName)
}
