package analyzer

import (
	"fmt"
	"strings"
)

// NoFireSentinel is the phrase the model must answer with when the frame is clear
const NoFireSentinel = "No fire detected"

const (
	defaultSubject = "Fire Alert!"
	defaultBody    = "Possible fire detected. Take immediate action."
)

const instructionTemplate = `Analyze the image and determine if fire or smoke is present.
If fire or smoke is detected, generate a complete email automatically.
- Write a **clear and urgent subject** on the first line (avoid long text).
- Write a **professional but urgent email body** on the following lines.
- **Include emergency contact numbers** for Fire Department and Ambulance (local numbers for %s).
- If no fire or smoke is detected, simply respond with "%s."`

// BuildInstruction renders the fixed instruction for the given locality
func BuildInstruction(locality string) string {
	locality = strings.TrimSpace(locality)
	if locality == "" {
		locality = "the camera location"
	}
	return fmt.Sprintf(instructionTemplate, strings.ToUpper(locality), NoFireSentinel)
}
