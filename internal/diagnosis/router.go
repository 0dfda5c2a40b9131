// Package diagnosis maps reported symptoms to diagnoses and diagnoses to
// the hospitals that treat them. The tables are static and read-only.
package diagnosis

import "strings"

// Symptoms returns every symptom the router understands.
func Symptoms() []string {
	out := make([]string, len(symptomOrder))
	copy(out, symptomOrder)
	return out
}

// Diagnose maps each symptom to its diagnosis. The result keeps the order
// in which diagnoses first appear and contains no duplicates. Unknown
// symptoms are skipped.
func Diagnose(symptoms []string) []Diagnosis {
	seen := make(map[Diagnosis]struct{}, len(symptoms))
	out := make([]Diagnosis, 0, len(symptoms))

	for _, s := range symptoms {
		d, ok := symptomToDiagnosis[strings.ToLower(strings.TrimSpace(s))]
		if !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}

	return out
}

// Route concatenates the hospital lists of each diagnosis in order.
// A hospital listed under two diagnoses appears twice; callers rely on the
// list as-is, so it is not de-duplicated.
func Route(diagnoses []Diagnosis) []string {
	out := make([]string, 0, 3*len(diagnoses))
	for _, d := range diagnoses {
		out = append(out, diagnosisToHospitals[d]...)
	}
	return out
}
