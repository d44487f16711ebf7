package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entity(kind EntityKind, fields string, ts time.Time) StoredEntity {
	return StoredEntity{Kind: kind, Fields: json.RawMessage(fields), ExtractedAt: ts}
}

func TestMergeEntitiesIsIdempotent(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	extracted := []StoredEntity{
		entity(KindFoodItems, `{"item":"oatmeal"}`, t1),
		entity(KindFoodItems, `{"item":"coffee"}`, t1),
	}

	merged, added := MergeEntities(nil, extracted)
	require.Len(t, merged, 2)
	assert.Len(t, added, 2)

	again, added := MergeEntities(merged, extracted)
	assert.Equal(t, merged, again)
	assert.Empty(t, added)
}

func TestMergeEntitiesKeepsFirstOccurrence(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	existing := []StoredEntity{entity(KindEmotionalStates, `{"emotion":"anxious"}`, t1)}
	later := []StoredEntity{entity(KindEmotionalStates, `{"emotion":"anxious"}`, t2)}

	merged, added := MergeEntities(existing, later)
	require.Len(t, merged, 1)
	assert.Empty(t, added)
	assert.Equal(t, t1, merged[0].ExtractedAt, "earlier timestamp wins")
}

func TestMergeEntitiesIgnoresWhitespaceDifferences(t *testing.T) {
	ts := time.Now()
	existing := []StoredEntity{entity(KindPeople, `{"name":"Anna"}`, ts)}
	// Persistence round-trips reindent raw fields; identity must not change.
	reloaded := []StoredEntity{entity(KindPeople, "{\n  \"name\": \"Anna\"\n}", ts)}

	merged, _ := MergeEntities(existing, reloaded)
	assert.Len(t, merged, 1)
}

func TestMergeEntitiesDistinguishesKinds(t *testing.T) {
	ts := time.Now()
	merged, _ := MergeEntities(
		[]StoredEntity{entity(KindActivities, `{"activity":"running"}`, ts)},
		[]StoredEntity{entity(KindWorkoutPreferences, `{"activity":"running"}`, ts)},
	)
	assert.Len(t, merged, 2)
}

func TestDietEntitiesFlattenCoversAllCategories(t *testing.T) {
	ts := time.Now()
	set := DietEntities{
		FoodItems:           []FoodItem{{Item: "oatmeal"}},
		NutritionalGoals:    []NutritionalGoal{{Goal: "more protein"}},
		EatingPatterns:      []EatingPattern{{Pattern: "late snacking"}},
		DietaryRestrictions: []DietaryRestriction{{Restriction: "lactose free"}},
		MealPlans:           []MealPlan{{MealType: "weekly prep", CookingSkill: "beginner"}},
		BodyResponses:       []BodyResponse{{Response: "bloating", FoodTrigger: "dairy", Recurring: true}},
	}

	flat := set.Flatten(ts)
	require.Len(t, flat, 6)

	kinds := make(map[EntityKind]int)
	for _, ent := range flat {
		kinds[ent.Kind]++
	}
	assert.Equal(t, 1, kinds[KindMealPlans])
	assert.Equal(t, 1, kinds[KindBodyResponses])
}

func TestExerciseEntitiesFlattenCoversAllCategories(t *testing.T) {
	ts := time.Now()
	set := ExerciseEntities{
		Activities:          []ExerciseActivity{{Activity: "running", Distance: "5km"}},
		FitnessGoals:        []FitnessGoal{{Goal: "run a 10k"}},
		PhysicalLimitations: []PhysicalLimitation{{Limitation: "knee pain"}},
		WorkoutPreferences:  []WorkoutPreference{{Preference: "morning workouts"}},
		PhysicalResponses:   []PhysicalResponse{{Response: "muscle soreness", ExerciseTrigger: "squats"}},
		FitnessEnvironments: []FitnessEnvironment{{Location: "home gym", Equipment: []string{"dumbbells"}}},
		PerformanceMetrics:  []PerformanceMetric{{Metric: "distance", CurrentValue: "5km", TargetValue: "10km"}},
	}

	flat := set.Flatten(ts)
	require.Len(t, flat, 7)

	kinds := make(map[EntityKind]int)
	for _, ent := range flat {
		kinds[ent.Kind]++
	}
	assert.Equal(t, 1, kinds[KindPhysicalResponses])
	assert.Equal(t, 1, kinds[KindFitnessEnvironments])
	assert.Equal(t, 1, kinds[KindPerformanceMetrics])

	var metric PerformanceMetric
	for _, ent := range flat {
		if ent.Kind == KindPerformanceMetrics {
			require.NoError(t, json.Unmarshal(ent.Fields, &metric))
		}
	}
	assert.Equal(t, "distance", metric.Metric)
}
