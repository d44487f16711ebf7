package models

import "strings"

// Specialist identifies one of the fixed conversational domains a thread is
// permanently bound to.
type Specialist string

const (
	SpecialistMentalHealth Specialist = "MENTAL_HEALTH"
	SpecialistDiet         Specialist = "DIET"
	SpecialistExercise     Specialist = "EXERCISE"
	SpecialistGeneral      Specialist = "GENERAL"
)

// DefaultSpecialist is where unrecognized or ambiguous routing lands.
const DefaultSpecialist = SpecialistMentalHealth

// Specialists lists the tags a thread may be bound to. GENERAL is a routing
// and extraction category only, never a thread owner.
var Specialists = []Specialist{SpecialistMentalHealth, SpecialistDiet, SpecialistExercise}

func (s Specialist) Valid() bool {
	switch s {
	case SpecialistMentalHealth, SpecialistDiet, SpecialistExercise:
		return true
	}
	return false
}

// ParseSpecialist normalizes a free-form tag. Unknown values map to the
// default tag so routing never blocks a turn.
func ParseSpecialist(raw string) Specialist {
	tag := Specialist(strings.ToUpper(strings.TrimSpace(raw)))
	if tag.Valid() {
		return tag
	}
	return DefaultSpecialist
}
