package profile

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

// --- Mock holder ---

type mockHolder struct {
	p   Profile
	set bool
}

func (h *mockHolder) Profile() (Profile, bool) { return h.p, h.set }

func (h *mockHolder) SetProfile(p Profile) {
	h.p = p
	h.set = true
}

// --- Mock clock ---

type mockClock struct {
	now time.Time
}

func (c mockClock) Now() time.Time { return c.now }

func newTestManager() *Manager {
	return NewManagerWithClock(mockClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)})
}

func validProfile() Profile {
	return Profile{
		Basic: BasicInfo{
			FirstName:   "Alice",
			LastName:    "Smith",
			Age:         24,
			DateOfBirth: "2000-05-17",
			Gender:      "Female",
		},
		Skin: SkinInfo{
			SkinType:          "Oily",
			BreakoutFrequency: "Frequently",
			Concerns:          []string{"Acne", "Redness"},
			SensitiveSkin:     "No",
			Routine:           "Basic",
			MakeupUsage:       "Occasionally",
		},
		Lifestyle: LifestyleInfo{
			Diet:        "Moderate",
			WaterIntake: "1-2L",
			SleepHours:  "5-7",
		},
	}
}

// --- Tests ---

func TestGet_Absent(t *testing.T) {
	mgr := newTestManager()

	p, ok := mgr.Get(&mockHolder{})
	if ok {
		t.Fatalf("Get() ok = true, want false (profile %+v)", p)
	}
	if !reflect.DeepEqual(p, Profile{}) {
		t.Errorf("Get() = %+v, want zero profile", p)
	}
}

func TestSave_Valid(t *testing.T) {
	mgr := newTestManager()
	h := &mockHolder{}

	saved, err := mgr.Save(h, validProfile())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !reflect.DeepEqual(saved, validProfile()) {
		t.Errorf("Save() = %+v, want %+v", saved, validProfile())
	}

	got, ok := mgr.Get(h)
	if !ok {
		t.Fatal("Get() ok = false after save")
	}
	if !reflect.DeepEqual(got, validProfile()) {
		t.Errorf("Get() = %+v, want %+v", got, validProfile())
	}
}

func TestSave_OptionalFieldsMayBeEmpty(t *testing.T) {
	mgr := newTestManager()
	p := validProfile()
	p.Basic.Email = ""
	p.Skin.Allergies = ""
	p.Skin.Concerns = nil

	if _, err := mgr.Save(&mockHolder{}, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestSave_ReplacesWholesale(t *testing.T) {
	mgr := newTestManager()
	h := &mockHolder{}

	first := validProfile()
	first.Basic.Email = "alice@x.com"
	first.Skin.Allergies = "salicylic acid"
	if _, err := mgr.Save(h, first); err != nil {
		t.Fatal(err)
	}

	second := Profile{
		Basic: BasicInfo{FirstName: "Bob", LastName: "Jones", Age: 40, DateOfBirth: "1985-01-02", Gender: "Male"},
		Skin: SkinInfo{
			SkinType: "Dry", BreakoutFrequency: "Rarely", SensitiveSkin: "Yes",
			Routine: "Extensive", MakeupUsage: "Never",
		},
		Lifestyle: LifestyleInfo{Diet: "Healthy", WaterIntake: "More than 2L", SleepHours: "More than 7"},
	}
	if _, err := mgr.Save(h, second); err != nil {
		t.Fatal(err)
	}

	got, _ := mgr.Get(h)
	if got.Basic.Email != "" || got.Skin.Allergies != "" {
		t.Errorf("fields from first profile leaked: email=%q allergies=%q", got.Basic.Email, got.Skin.Allergies)
	}
	if len(got.Skin.Concerns) != 0 {
		t.Errorf("Concerns = %v, want empty", got.Skin.Concerns)
	}
	if got.Basic.FirstName != "Bob" || got.Skin.SkinType != "Dry" {
		t.Errorf("Get() = %+v, want second profile", got)
	}
}

func TestSave_MissingFieldKeepsPrior(t *testing.T) {
	mutations := map[string]func(*Profile){
		"first_name":       func(p *Profile) { p.Basic.FirstName = "" },
		"last_name":        func(p *Profile) { p.Basic.LastName = "  " },
		"age":              func(p *Profile) { p.Basic.Age = 0 },
		"dob":              func(p *Profile) { p.Basic.DateOfBirth = "" },
		"gender":           func(p *Profile) { p.Basic.Gender = "" },
		"skin_type":        func(p *Profile) { p.Skin.SkinType = "" },
		"acne_frequency":   func(p *Profile) { p.Skin.BreakoutFrequency = "" },
		"sensitive_skin":   func(p *Profile) { p.Skin.SensitiveSkin = "" },
		"skincare_routine": func(p *Profile) { p.Skin.Routine = "" },
		"makeup_usage":     func(p *Profile) { p.Skin.MakeupUsage = "" },
		"diet":             func(p *Profile) { p.Lifestyle.Diet = "" },
		"water_intake":     func(p *Profile) { p.Lifestyle.WaterIntake = "" },
		"sleep_hours":      func(p *Profile) { p.Lifestyle.SleepHours = "" },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			mgr := newTestManager()
			h := &mockHolder{}
			prior := validProfile()
			if _, err := mgr.Save(h, prior); err != nil {
				t.Fatal(err)
			}

			bad := validProfile()
			bad.Basic.FirstName = "Changed"
			mutate(&bad)

			_, err := mgr.Save(h, bad)
			if !apperr.IsCode(err, apperr.CodeValidation) {
				t.Fatalf("Save err = %v, want VALIDATION", err)
			}
			if !strings.Contains(err.Error(), field) {
				t.Errorf("error %q does not name field %q", err, field)
			}

			got, _ := mgr.Get(h)
			if !reflect.DeepEqual(got, prior) {
				t.Errorf("profile changed after failed save: %+v", got)
			}
		})
	}
}

func TestSave_MissingFieldNoPrior(t *testing.T) {
	mgr := newTestManager()
	h := &mockHolder{}

	p := validProfile()
	p.Lifestyle.Diet = ""
	if _, err := mgr.Save(h, p); !apperr.IsCode(err, apperr.CodeValidation) {
		t.Fatalf("Save err = %v, want VALIDATION", err)
	}
	if _, ok := mgr.Get(h); ok {
		t.Error("Get() ok = true after failed first save")
	}
}

func TestValidate_OutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Profile)
		field  string
	}{
		{"age too low", func(p *Profile) { p.Basic.Age = 9 }, "age"},
		{"age too high", func(p *Profile) { p.Basic.Age = 101 }, "age"},
		{"dob bad format", func(p *Profile) { p.Basic.DateOfBirth = "17/05/2000" }, "dob"},
		{"dob in future", func(p *Profile) { p.Basic.DateOfBirth = "2030-01-01" }, "dob"},
		{"unknown gender", func(p *Profile) { p.Basic.Gender = "female" }, "gender"},
		{"unknown skin type", func(p *Profile) { p.Skin.SkinType = "Greasy" }, "skin_type"},
		{"unknown concern", func(p *Profile) { p.Skin.Concerns = []string{"Acne", "Wrinkles"} }, "concerns"},
		{"unknown water intake", func(p *Profile) { p.Lifestyle.WaterIntake = "3L" }, "water_intake"},
	}
	mgr := newTestManager()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validProfile()
			tt.mutate(&p)
			err := mgr.Validate(p)
			if !apperr.IsCode(err, apperr.CodeValidation) {
				t.Fatalf("Validate = %v, want VALIDATION", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name %q", err, tt.field)
			}
		})
	}
}

func TestValidate_ReportsAllFields(t *testing.T) {
	err := newTestManager().Validate(Profile{})
	if err == nil {
		t.Fatal("expected error for empty profile")
	}
	for _, f := range []string{"first_name", "age", "dob", "gender", "skin_type", "diet", "sleep_hours"} {
		if !strings.Contains(err.Error(), f) {
			t.Errorf("error %q missing field %q", err, f)
		}
	}
	if strings.Contains(err.Error(), "email") || strings.Contains(err.Error(), "allergies") {
		t.Errorf("error %q names an optional field", err)
	}
}

func TestSave_DedupesConcerns(t *testing.T) {
	mgr := newTestManager()
	p := validProfile()
	p.Skin.Concerns = []string{"Redness", "Acne", "Redness"}

	saved, err := mgr.Save(&mockHolder{}, p)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"Redness", "Acne"}; !reflect.DeepEqual(saved.Skin.Concerns, want) {
		t.Errorf("Concerns = %v, want %v", saved.Skin.Concerns, want)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	mgr := newTestManager()
	h := &mockHolder{}
	if _, err := mgr.Save(h, validProfile()); err != nil {
		t.Fatal(err)
	}

	got, _ := mgr.Get(h)
	got.Skin.Concerns[0] = "Mutated"

	again, _ := mgr.Get(h)
	if again.Skin.Concerns[0] != "Acne" {
		t.Errorf("stored profile mutated through returned copy: %v", again.Skin.Concerns)
	}
}

func TestSummary(t *testing.T) {
	p := validProfile()
	s := Summary(p)

	for _, want := range []string{
		"Name: Alice Smith",
		"Age: 24 (2000-05-17)",
		"Skin Concerns: Acne, Redness",
		"Sleep Hours: 5-7",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("Summary missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Email:") || strings.Contains(s, "Allergies:") {
		t.Errorf("Summary shows empty optional fields:\n%s", s)
	}

	p.Skin.Allergies = "benzoyl peroxide"
	if s := Summary(p); !strings.Contains(s, "Allergies: benzoyl peroxide") {
		t.Errorf("Summary missing allergies:\n%s", s)
	}
}
