package profile

// Profile is the skincare questionnaire a user fills in for their session.
// It is replaced wholesale on every save.
type Profile struct {
	Basic     BasicInfo     `json:"basic"`
	Skin      SkinInfo      `json:"skin"`
	Lifestyle LifestyleInfo `json:"lifestyle"`
}

// BasicInfo captures demographic details.
type BasicInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Age         int    `json:"age"`
	DateOfBirth string `json:"dob"` // YYYY-MM-DD
	Gender      string `json:"gender"`
	Email       string `json:"email,omitempty"` // optional
}

// SkinInfo captures the skin-related answers.
type SkinInfo struct {
	SkinType          string   `json:"skin_type"`
	BreakoutFrequency string   `json:"acne_frequency"`
	Concerns          []string `json:"concerns"`
	SensitiveSkin     string   `json:"sensitive_skin"`
	Routine           string   `json:"skincare_routine"`
	MakeupUsage       string   `json:"makeup_usage"`
	Allergies         string   `json:"allergies,omitempty"` // optional
}

// LifestyleInfo captures diet, hydration and sleep habits.
type LifestyleInfo struct {
	Diet        string `json:"diet"`
	WaterIntake string `json:"water_intake"`
	SleepHours  string `json:"sleep_hours"`
}

const (
	MinAge = 10
	MaxAge = 100
)

// Allowed answers for each enumerated question.
var (
	Genders             = []string{"Male", "Female", "Other"}
	SkinTypes           = []string{"Oily", "Dry", "Combination", "Sensitive", "Normal"}
	BreakoutFrequencies = []string{"Rarely", "Occasionally", "Frequently", "Always"}
	Concerns            = []string{"Acne", "Redness", "Dark Spots", "Large Pores", "Blackheads/Whiteheads"}
	YesNo               = []string{"Yes", "No"}
	Routines            = []string{"None", "Basic", "Extensive"}
	MakeupUsages        = []string{"Never", "Occasionally", "Daily"}
	Diets               = []string{"Healthy", "Moderate", "Unhealthy"}
	WaterIntakes        = []string{"Less than 1L", "1-2L", "More than 2L"}
	SleepHours          = []string{"Less than 5", "5-7", "More than 7"}
)
