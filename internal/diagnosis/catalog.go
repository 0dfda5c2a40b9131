package diagnosis

type Diagnosis string

const (
	Flu          Diagnosis = "Flu"
	Migraine     Diagnosis = "Migraine"
	Cold         Diagnosis = "Cold"
	CardiacIssue Diagnosis = "CardiacIssue"
	Allergy      Diagnosis = "Allergy"
)

const (
	VijayaHospital       = "Vijaya Hospital"
	GayathriHospital     = "Gayathri Hospital"
	OrangeHospital       = "Orange Hospital"
	BrainAndSpineExpert  = "Brain and Spine Expert Hospital"
	FamilyDoctorClinic   = "Family doctor Clinic"
	PremaHospitals       = "Prema Hospitals"
	CareFirst            = "CareFirst"
	BVRHospitals         = "BVR Hospitals"
	KamineniHospitals    = "Kamineni Hospitals"
	OwasisHospitals      = "Owasis Hospitals"
	ViveksSkinClinic     = "Vivek's Skin Clinic"
	SwarnaNeuroVisionCtr = "Swarna Neuro Vision Center"
)

// Hospitals is the fixed hospital catalogue, in display order.
var Hospitals = []string{
	VijayaHospital,
	GayathriHospital,
	OrangeHospital,
	BrainAndSpineExpert,
	FamilyDoctorClinic,
	PremaHospitals,
	CareFirst,
	BVRHospitals,
	KamineniHospitals,
	OwasisHospitals,
	ViveksSkinClinic,
	SwarnaNeuroVisionCtr,
}

// symptomOrder keeps Symptoms() stable; map iteration is random.
var symptomOrder = []string{"fever", "headache", "cough", "chestpain", "rash"}

var symptomToDiagnosis = map[string]Diagnosis{
	"fever":     Flu,
	"headache":  Migraine,
	"cough":     Cold,
	"chestpain": CardiacIssue,
	"rash":      Allergy,
}

var diagnosisToHospitals = map[Diagnosis][]string{
	Flu:          {VijayaHospital, GayathriHospital, OrangeHospital},
	Migraine:     {BrainAndSpineExpert, VijayaHospital, SwarnaNeuroVisionCtr},
	Cold:         {FamilyDoctorClinic, PremaHospitals, CareFirst},
	CardiacIssue: {BVRHospitals, VijayaHospital, KamineniHospitals},
	Allergy:      {OwasisHospitals, ViveksSkinClinic, SwarnaNeuroVisionCtr},
}
