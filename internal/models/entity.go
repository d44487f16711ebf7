package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// EntityKind names a category of extracted fact ("people", "food_items", ...).
type EntityKind string

const (
	KindPeople              EntityKind = "people"
	KindPlaces              EntityKind = "places"
	KindEvents              EntityKind = "events"
	KindSubstances          EntityKind = "substances"
	KindConditions          EntityKind = "conditions"
	KindCopingStrategies    EntityKind = "coping_strategies"
	KindEmotionalStates     EntityKind = "emotional_states"
	KindTherapeuticGoals    EntityKind = "therapeutic_goals"
	KindFoodItems           EntityKind = "food_items"
	KindNutritionalGoals    EntityKind = "nutritional_goals"
	KindEatingPatterns      EntityKind = "eating_patterns"
	KindDietaryRestrictions EntityKind = "dietary_restrictions"
	KindMealPlans           EntityKind = "meal_plans"
	KindBodyResponses       EntityKind = "body_responses"
	KindActivities          EntityKind = "activities"
	KindFitnessGoals        EntityKind = "fitness_goals"
	KindPhysicalLimitations EntityKind = "physical_limitations"
	KindWorkoutPreferences  EntityKind = "workout_preferences"
	KindPhysicalResponses   EntityKind = "physical_responses"
	KindFitnessEnvironments EntityKind = "fitness_environments"
	KindPerformanceMetrics  EntityKind = "performance_metrics"
)

// StoredEntity is the persisted form of an extracted fact. Fields holds the
// canonical JSON of the typed entity; ExtractedAt is excluded from identity so
// two mentions of the same fact collapse to the first occurrence.
type StoredEntity struct {
	Kind        EntityKind      `json:"kind"`
	Fields      json.RawMessage `json:"fields"`
	ExtractedAt time.Time       `json:"extracted_at"`
}

// Identity returns the content-derived key for deduplication. The raw fields
// are compacted so whitespace introduced by persistence round-trips cannot
// split identical entities.
func (e StoredEntity) Identity() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Fields); err != nil {
		return string(e.Kind) + ":" + string(e.Fields)
	}
	return string(e.Kind) + ":" + buf.String()
}

// MergeEntities folds extracted entities into an existing collection. Identity
// is content-derived (kind plus canonical fields, timestamp excluded); the
// first occurrence and its timestamp win. Merging the same extraction twice
// leaves the collection unchanged. The second return value holds only the
// newly added records.
func MergeEntities(existing, extracted []StoredEntity) (merged, added []StoredEntity) {
	seen := make(map[string]struct{}, len(existing))
	for _, ent := range existing {
		seen[ent.Identity()] = struct{}{}
	}

	merged = existing
	for _, ent := range extracted {
		key := ent.Identity()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, ent)
		added = append(added, ent)
	}
	return merged, added
}

// General entities, used when a message routes outside the wellness domains.

type Person struct {
	Name            string `json:"name"`
	Relationship    string `json:"relationship,omitempty"`
	Significance    string `json:"significance,omitempty"`
	EmotionalCharge string `json:"emotional_charge,omitempty"`
}

type Place struct {
	Location             string `json:"location"`
	Context              string `json:"context,omitempty"`
	EmotionalAssociation string `json:"emotional_association,omitempty"`
}

type Event struct {
	Event     string `json:"event"`
	Timeframe string `json:"timeframe,omitempty"`
	Relevance string `json:"relevance,omitempty"`
}

type Substance struct {
	Substance    string `json:"substance"`
	UsagePattern string `json:"usage_pattern,omitempty"`
	Context      string `json:"context,omitempty"`
}

type GeneralEntities struct {
	People     []Person    `json:"people"`
	Places     []Place     `json:"places"`
	Events     []Event     `json:"events"`
	Substances []Substance `json:"substances"`
}

// Mental health entities.

type Condition struct {
	Condition string   `json:"condition"`
	Severity  string   `json:"severity,omitempty"`
	Symptoms  []string `json:"symptoms,omitempty"`
	Triggers  []string `json:"triggers,omitempty"`
	Duration  string   `json:"duration,omitempty"`
}

type CopingStrategy struct {
	Strategy      string `json:"strategy"`
	Effectiveness string `json:"effectiveness,omitempty"`
	Frequency     string `json:"frequency,omitempty"`
}

type EmotionalState struct {
	Emotion   string `json:"emotion"`
	Intensity string `json:"intensity,omitempty"`
	Situation string `json:"situation,omitempty"`
}

type TherapeuticGoal struct {
	Goal     string `json:"goal"`
	Timeline string `json:"timeline,omitempty"`
	Progress string `json:"progress,omitempty"`
}

type MentalHealthEntities struct {
	People           []Person          `json:"people"`
	Conditions       []Condition       `json:"conditions"`
	CopingStrategies []CopingStrategy  `json:"coping_strategies"`
	EmotionalStates  []EmotionalState  `json:"emotional_states"`
	TherapeuticGoals []TherapeuticGoal `json:"therapeutic_goals"`
}

// Diet entities.

type FoodItem struct {
	Item        string `json:"item"`
	Quantity    string `json:"quantity,omitempty"`
	MealContext string `json:"meal_context,omitempty"`
	Preparation string `json:"preparation,omitempty"`
}

type NutritionalGoal struct {
	Goal      string `json:"goal"`
	Timeline  string `json:"timeline,omitempty"`
	Challenge string `json:"challenge,omitempty"`
}

type EatingPattern struct {
	Pattern   string   `json:"pattern"`
	Frequency string   `json:"frequency,omitempty"`
	Triggers  []string `json:"triggers,omitempty"`
}

type DietaryRestriction struct {
	Restriction string `json:"restriction"`
	Reason      string `json:"reason,omitempty"`
	Strictness  string `json:"strictness,omitempty"`
}

type MealPlan struct {
	MealType             string   `json:"meal_type"`
	PreparationTime      string   `json:"preparation_time,omitempty"`
	BudgetConstraint     string   `json:"budget_constraint,omitempty"`
	CookingSkill         string   `json:"cooking_skill,omitempty"`
	Equipment            []string `json:"equipment_available,omitempty"`
	FamilyConsiderations string   `json:"family_considerations,omitempty"`
}

type BodyResponse struct {
	Response    string `json:"response"`
	FoodTrigger string `json:"food_trigger,omitempty"`
	Timing      string `json:"timing,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Recurring   bool   `json:"pattern,omitempty"`
}

type DietEntities struct {
	FoodItems           []FoodItem           `json:"food_items"`
	NutritionalGoals    []NutritionalGoal    `json:"nutritional_goals"`
	EatingPatterns      []EatingPattern      `json:"eating_patterns"`
	DietaryRestrictions []DietaryRestriction `json:"dietary_restrictions"`
	MealPlans           []MealPlan           `json:"meal_plans"`
	BodyResponses       []BodyResponse       `json:"body_responses"`
}

// Exercise entities.

type ExerciseActivity struct {
	Activity  string `json:"activity"`
	Duration  string `json:"duration,omitempty"`
	Distance  string `json:"distance,omitempty"`
	Intensity string `json:"intensity,omitempty"`
	SetsReps  string `json:"sets_reps,omitempty"`
	Location  string `json:"location,omitempty"`
	Status    string `json:"status,omitempty"`
}

type FitnessGoal struct {
	Goal         string `json:"goal"`
	TargetMetric string `json:"target_metric,omitempty"`
	Timeline     string `json:"timeline,omitempty"`
}

type PhysicalLimitation struct {
	Limitation string   `json:"limitation"`
	Severity   string   `json:"severity,omitempty"`
	Affected   []string `json:"affected_activities,omitempty"`
}

type WorkoutPreference struct {
	Preference   string `json:"preference"`
	Reasoning    string `json:"reasoning,omitempty"`
	Availability string `json:"availability,omitempty"`
}

type PhysicalResponse struct {
	Response        string `json:"response"`
	ExerciseTrigger string `json:"exercise_trigger,omitempty"`
	Timing          string `json:"timing,omitempty"`
	Impact          string `json:"impact,omitempty"`
	RecoveryMethod  string `json:"recovery_method,omitempty"`
}

type FitnessEnvironment struct {
	Location         string   `json:"location"`
	Equipment        []string `json:"equipment_available,omitempty"`
	SpaceConstraints string   `json:"space_constraints,omitempty"`
	TimeConstraints  string   `json:"time_constraints,omitempty"`
	SocialSupport    string   `json:"social_support,omitempty"`
}

type PerformanceMetric struct {
	Metric         string `json:"metric"`
	CurrentValue   string `json:"current_value,omitempty"`
	TargetValue    string `json:"target_value,omitempty"`
	TrackingMethod string `json:"tracking_method,omitempty"`
	ProgressTrend  string `json:"progress_trend,omitempty"`
	Frequency      string `json:"frequency,omitempty"`
}

type ExerciseEntities struct {
	Activities          []ExerciseActivity   `json:"activities"`
	FitnessGoals        []FitnessGoal        `json:"fitness_goals"`
	PhysicalLimitations []PhysicalLimitation `json:"physical_limitations"`
	WorkoutPreferences  []WorkoutPreference  `json:"workout_preferences"`
	PhysicalResponses   []PhysicalResponse   `json:"physical_responses"`
	FitnessEnvironments []FitnessEnvironment `json:"fitness_environments"`
	PerformanceMetrics  []PerformanceMetric  `json:"performance_metrics"`
}

func appendStored[T any](dst []StoredEntity, kind EntityKind, items []T, ts time.Time) []StoredEntity {
	for _, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			continue
		}
		dst = append(dst, StoredEntity{Kind: kind, Fields: raw, ExtractedAt: ts})
	}
	return dst
}

// Flatten converts a typed set into storage records stamped with ts.

func (g GeneralEntities) Flatten(ts time.Time) []StoredEntity {
	var out []StoredEntity
	out = appendStored(out, KindPeople, g.People, ts)
	out = appendStored(out, KindPlaces, g.Places, ts)
	out = appendStored(out, KindEvents, g.Events, ts)
	out = appendStored(out, KindSubstances, g.Substances, ts)
	return out
}

func (m MentalHealthEntities) Flatten(ts time.Time) []StoredEntity {
	var out []StoredEntity
	out = appendStored(out, KindPeople, m.People, ts)
	out = appendStored(out, KindConditions, m.Conditions, ts)
	out = appendStored(out, KindCopingStrategies, m.CopingStrategies, ts)
	out = appendStored(out, KindEmotionalStates, m.EmotionalStates, ts)
	out = appendStored(out, KindTherapeuticGoals, m.TherapeuticGoals, ts)
	return out
}

func (d DietEntities) Flatten(ts time.Time) []StoredEntity {
	var out []StoredEntity
	out = appendStored(out, KindFoodItems, d.FoodItems, ts)
	out = appendStored(out, KindNutritionalGoals, d.NutritionalGoals, ts)
	out = appendStored(out, KindEatingPatterns, d.EatingPatterns, ts)
	out = appendStored(out, KindDietaryRestrictions, d.DietaryRestrictions, ts)
	out = appendStored(out, KindMealPlans, d.MealPlans, ts)
	out = appendStored(out, KindBodyResponses, d.BodyResponses, ts)
	return out
}

func (e ExerciseEntities) Flatten(ts time.Time) []StoredEntity {
	var out []StoredEntity
	out = appendStored(out, KindActivities, e.Activities, ts)
	out = appendStored(out, KindFitnessGoals, e.FitnessGoals, ts)
	out = appendStored(out, KindPhysicalLimitations, e.PhysicalLimitations, ts)
	out = appendStored(out, KindWorkoutPreferences, e.WorkoutPreferences, ts)
	out = appendStored(out, KindPhysicalResponses, e.PhysicalResponses, ts)
	out = appendStored(out, KindFitnessEnvironments, e.FitnessEnvironments, ts)
	out = appendStored(out, KindPerformanceMetrics, e.PerformanceMetrics, ts)
	return out
}
