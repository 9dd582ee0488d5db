package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidFormats lists the six accepted response_format values.
var ValidFormats = map[Format]bool{
	FormatMP3: true, FormatWAV: true, FormatFLAC: true,
	FormatOGG: true, FormatOpus: true, FormatAAC: true,
}

// ValidateRequest checks text length bounds, format enum membership, and the
// speed range, returning warnings for values inside the legal-but-discouraged
// band. It does not resolve voice aliases or existence — that happens in
// resolveVoice, against the live voice set, which validate has no access to.
func ValidateRequest(req Request) ([]string, error) {
	var warnings []string

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newError(KindValidation, "input text must be non-empty after trimming")
	}

	if n := utf8.RuneCountInString(text); n > 10000 {
		return nil, newError(KindValidation, fmt.Sprintf("input text exceeds 10000 characters (got %d)", n))
	}

	if req.Format != "" && !ValidFormats[req.Format] {
		return nil, newError(KindValidation, fmt.Sprintf("unsupported response_format %q", req.Format))
	}

	if req.Speed == 0 {
		return warnings, nil
	}

	if req.Speed < 0.25 || req.Speed > 4.0 {
		return nil, newError(KindValidation, fmt.Sprintf("speed %v outside allowed range [0.25, 4.0]", req.Speed))
	}

	if req.Speed < 0.5 || req.Speed > 2.0 {
		warnings = append(warnings, fmt.Sprintf("speed %v is outside the recommended range [0.5, 2.0]", req.Speed))
	}

	return warnings, nil
}
