package profile

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Muhammadazeem-eng/acne-detect/internal/apperr"
)

// Holder is anything that can carry one Profile, typically a session.
// Implemented by session.Session.
type Holder interface {
	Profile() (Profile, bool)
	SetProfile(p Profile)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

const dateLayout = "2006-01-02"

// Manager validates questionnaires and stores them on a Holder.
type Manager struct {
	clock Clock
}

// NewManager creates a Manager using the wall clock.
func NewManager() *Manager {
	return &Manager{clock: realClock{}}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(clock Clock) *Manager {
	return &Manager{clock: clock}
}

// Save validates p and replaces the holder's profile wholesale. On a
// validation failure the prior profile, if any, is left untouched.
func (m *Manager) Save(h Holder, p Profile) (Profile, error) {
	p = normalize(p)
	if err := m.Validate(p); err != nil {
		return Profile{}, err
	}
	h.SetProfile(deepCopyProfile(&p))
	return deepCopyProfile(&p), nil
}

// Get returns the holder's current profile, or false when none was saved.
func (m *Manager) Get(h Holder) (Profile, bool) {
	p, ok := h.Profile()
	if !ok {
		return Profile{}, false
	}
	return deepCopyProfile(&p), true
}

// Validate reports every missing or out-of-range field in one
// ValidationError. Email, Allergies and Concerns are optional.
func (m *Manager) Validate(p Profile) error {
	var bad []string

	req := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			bad = append(bad, name)
		}
	}
	enum := func(name, v string, allowed []string) {
		if !slices.Contains(allowed, v) {
			bad = append(bad, name)
		}
	}

	req("first_name", p.Basic.FirstName)
	req("last_name", p.Basic.LastName)
	if p.Basic.Age < MinAge || p.Basic.Age > MaxAge {
		bad = append(bad, "age")
	}
	if dob, err := time.Parse(dateLayout, p.Basic.DateOfBirth); err != nil || dob.After(m.clock.Now()) {
		bad = append(bad, "dob")
	}
	enum("gender", p.Basic.Gender, Genders)

	enum("skin_type", p.Skin.SkinType, SkinTypes)
	enum("acne_frequency", p.Skin.BreakoutFrequency, BreakoutFrequencies)
	for _, c := range p.Skin.Concerns {
		if !slices.Contains(Concerns, c) {
			bad = append(bad, "concerns")
			break
		}
	}
	enum("sensitive_skin", p.Skin.SensitiveSkin, YesNo)
	enum("skincare_routine", p.Skin.Routine, Routines)
	enum("makeup_usage", p.Skin.MakeupUsage, MakeupUsages)

	enum("diet", p.Lifestyle.Diet, Diets)
	enum("water_intake", p.Lifestyle.WaterIntake, WaterIntakes)
	enum("sleep_hours", p.Lifestyle.SleepHours, SleepHours)

	if len(bad) > 0 {
		return apperr.Validation("missing or invalid profile fields: " + strings.Join(bad, ", "))
	}
	return nil
}

// normalize trims free text and collapses duplicate concern tags,
// keeping first occurrence order.
func normalize(p Profile) Profile {
	p.Basic.FirstName = strings.TrimSpace(p.Basic.FirstName)
	p.Basic.LastName = strings.TrimSpace(p.Basic.LastName)
	p.Basic.Email = strings.TrimSpace(p.Basic.Email)
	p.Basic.DateOfBirth = strings.TrimSpace(p.Basic.DateOfBirth)
	p.Skin.Allergies = strings.TrimSpace(p.Skin.Allergies)

	concerns := make([]string, 0, len(p.Skin.Concerns))
	for _, c := range p.Skin.Concerns {
		if !slices.Contains(concerns, c) {
			concerns = append(concerns, c)
		}
	}
	p.Skin.Concerns = concerns
	return p
}

// Summary renders p as the "Your Saved Profile" block shown to users.
// Optional fields are omitted when empty.
func Summary(p Profile) string {
	var b strings.Builder
	line := func(label, v string) {
		fmt.Fprintf(&b, "%s: %s\n", label, v)
	}

	line("Name", strings.TrimSpace(p.Basic.FirstName+" "+p.Basic.LastName))
	line("Age", strconv.Itoa(p.Basic.Age)+" ("+p.Basic.DateOfBirth+")")
	line("Gender", p.Basic.Gender)
	if p.Basic.Email != "" {
		line("Email", p.Basic.Email)
	}
	line("Skin Type", p.Skin.SkinType)
	line("Breakout Frequency", p.Skin.BreakoutFrequency)
	line("Skin Concerns", strings.Join(p.Skin.Concerns, ", "))
	line("Sensitive Skin", p.Skin.SensitiveSkin)
	line("Skincare Routine", p.Skin.Routine)
	line("Makeup Usage", p.Skin.MakeupUsage)
	if p.Skin.Allergies != "" {
		line("Allergies", p.Skin.Allergies)
	}
	line("Diet", p.Lifestyle.Diet)
	line("Water Intake", p.Lifestyle.WaterIntake)
	line("Sleep Hours", p.Lifestyle.SleepHours)
	return b.String()
}

func deepCopyProfile(p *Profile) Profile {
	if p == nil {
		return Profile{}
	}
	cp := *p
	if p.Skin.Concerns != nil {
		cp.Skin.Concerns = make([]string, len(p.Skin.Concerns))
		copy(cp.Skin.Concerns, p.Skin.Concerns)
	}
	return cp
}
