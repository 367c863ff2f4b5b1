package pii

import "strings"

const (
	GenderFemale = "f"
	GenderMale   = "m"
)

// femaleGivenNames is a closed list of common Portuguese and Spanish female
// given names, stored folded (lower-case, no diacritics).
var femaleGivenNames = map[string]struct{}{}

func init() {
	for _, name := range []string{
		"adriana", "alice", "aline", "amanda", "ana", "andrea", "andreia", "angela",
		"beatriz", "bianca", "bruna", "camila", "carla", "carolina", "catarina", "cecilia",
		"claudia", "cristina", "daniela", "debora", "eduarda", "elaine", "eliane", "elisa",
		"fabiana", "fernanda", "flavia", "gabriela", "giovana", "helena", "isabel", "isabela",
		"jessica", "joana", "juliana", "julia", "larissa", "laura", "leticia", "livia",
		"luana", "lucia", "luciana", "luiza", "manuela", "marcia", "maria", "mariana",
		"marina", "natalia", "patricia", "paula", "priscila", "rafaela", "renata", "sabrina",
		"sandra", "silvia", "simone", "sofia", "tatiana", "vanessa", "vitoria", "yasmin",
	} {
		femaleGivenNames[name] = struct{}{}
	}
}

// InferGender guesses "f" or "m" from the first token of a given name.
//
// Best effort only: it is a closed lookup that defaults to "m" for anything
// it does not recognize, including empty input. Callers must not treat the
// result as customer-provided data.
func InferGender(firstName string) string {
	fields := strings.Fields(foldDiacritics(firstName))
	if len(fields) == 0 {
		return GenderMale
	}
	if _, ok := femaleGivenNames[strings.ToLower(fields[0])]; ok {
		return GenderFemale
	}
	return GenderMale
}
