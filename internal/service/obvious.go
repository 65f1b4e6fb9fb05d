package service

// FieldCategory classifies an obvious form field. Resolution only proceeds
// for labels the dictionary recognizes; everything else is assumed to be an
// essay or free-response prompt and is refused up front.
type FieldCategory string

const (
	CategoryName        FieldCategory = "name"
	CategoryEmail       FieldCategory = "email"
	CategoryPhone       FieldCategory = "phone"
	CategoryGPA         FieldCategory = "gpa"
	CategoryMajor       FieldCategory = "major"
	CategorySchool      FieldCategory = "school"
	CategoryDegree      FieldCategory = "degree"
	CategoryGraduation  FieldCategory = "graduation"
	CategoryAddress     FieldCategory = "address"
	CategoryCity        FieldCategory = "city"
	CategoryState       FieldCategory = "state"
	CategoryZip         FieldCategory = "zip"
	CategoryCountry     FieldCategory = "country"
	CategoryBirthDate   FieldCategory = "birth_date"
	CategoryCitizenship FieldCategory = "citizenship"
	CategoryTribe       FieldCategory = "tribal_affiliation"
	CategoryGender      FieldCategory = "gender"
	CategoryEthnicity   FieldCategory = "ethnicity"
)

type obviousPattern struct {
	tokens   []string
	category FieldCategory
}

// Matched against label tokens in order; more specific patterns come before
// the generic ones they overlap with ("email" before "address", "school"
// before "name").
var obviousPatterns = []obviousPattern{
	{[]string{"grade", "point", "average"}, CategoryGPA},
	{[]string{"grade", "point"}, CategoryGPA},
	{[]string{"gpa"}, CategoryGPA},

	{[]string{"e", "mail"}, CategoryEmail},
	{[]string{"email"}, CategoryEmail},

	{[]string{"phone"}, CategoryPhone},
	{[]string{"mobile"}, CategoryPhone},
	{[]string{"telephone"}, CategoryPhone},
	{[]string{"cell"}, CategoryPhone},

	{[]string{"field", "of", "study"}, CategoryMajor},
	{[]string{"area", "of", "study"}, CategoryMajor},
	{[]string{"major"}, CategoryMajor},
	{[]string{"minor"}, CategoryMajor},
	{[]string{"concentration"}, CategoryMajor},

	{[]string{"graduation"}, CategoryGraduation},
	{[]string{"grad", "year"}, CategoryGraduation},
	{[]string{"class", "of"}, CategoryGraduation},

	{[]string{"date", "of", "birth"}, CategoryBirthDate},
	{[]string{"birth"}, CategoryBirthDate},
	{[]string{"dob"}, CategoryBirthDate},

	{[]string{"citizenship"}, CategoryCitizenship},
	{[]string{"citizen"}, CategoryCitizenship},

	{[]string{"tribal"}, CategoryTribe},
	{[]string{"tribe"}, CategoryTribe},

	{[]string{"school"}, CategorySchool},
	{[]string{"college"}, CategorySchool},
	{[]string{"university"}, CategorySchool},
	{[]string{"institution"}, CategorySchool},

	{[]string{"degree"}, CategoryDegree},

	{[]string{"zip"}, CategoryZip},
	{[]string{"postal"}, CategoryZip},
	{[]string{"city"}, CategoryCity},
	{[]string{"state"}, CategoryState},
	{[]string{"country"}, CategoryCountry},

	{[]string{"gender"}, CategoryGender},
	{[]string{"ethnicity"}, CategoryEthnicity},
	{[]string{"race"}, CategoryEthnicity},

	{[]string{"address"}, CategoryAddress},

	{[]string{"surname"}, CategoryName},
	{[]string{"name"}, CategoryName},
}

// Categories where a wrong answer on a submitted application is costly.
// These never fall back to raw prose; broad matches must pass structured
// extraction or resolve to nothing.
var highStakesCategories = map[FieldCategory]bool{
	CategoryName:  true,
	CategoryEmail: true,
	CategoryPhone: true,
	CategoryGPA:   true,
}

// DetectObviousField reports whether the label names a field the engine is
// willing to answer, and its category when it does.
func DetectObviousField(label string) (FieldCategory, bool) {
	tokens := labelTokens(label)
	if len(tokens) == 0 {
		return "", false
	}
	for _, p := range obviousPatterns {
		if containsTokenSeq(tokens, p.tokens) {
			return p.category, true
		}
	}
	return "", false
}

// IsHighStakes reports whether the category forbids prose substitution.
func IsHighStakes(category FieldCategory) bool {
	return highStakesCategories[category]
}

func containsTokenSeq(tokens, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(tokens) {
		return false
	}
	for i := 0; i+len(seq) <= len(tokens); i++ {
		match := true
		for j, want := range seq {
			if tokens[i+j] != want {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
