package card

import "slices"

// RegisteredComponents lists the component ids a renderer is known to provide.
// Component blocks may reference other ids; this list only backs editor hints.
var RegisteredComponents = []string{
	"Sports/FitnessComparisonCard",
	"Sports/SpecializationTrapCard",
	"Sports/SensitivePeriodCard",
	"Sports/CognitionShiftCard",
	"Sports/StrengthCard",
	"Sports/SpeedCard",
	"Sports/EnduranceCard",
	"Sports/ScientificSportsCard",
	"Sports/ScientificSportsMindmapCard",
	"StudyNotes/DoseEffectCard",
	"StudyNotes/LogicalThinkingCard",
	"DailyThoughts/ReasoningVsEmotionCard",
	"FamilyEducation/FamilyEducationCard",
	"CommunicationSkills/NonviolentCommunicationCard",
}

// IsRegisteredComponent reports whether id is a known component.
func IsRegisteredComponent(id string) bool {
	return slices.Contains(RegisteredComponents, id)
}
