package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanQuery(t *testing.T) {
	cases := map[string]string{
		"Email Address *":                                  "Email Address",
		"GPA (required)":                                   "GPA",
		"Field of Study - please select from the list":     "Field of Study",
		"Intended Major: please choose one":                "Intended Major",
		"Phone Number (e.g. 555-123-4567)":                 "Phone Number",
		"Personal Statement (500 words max)":               "Personal Statement",
		"  City  ":                                         "City",
		"What is your GPA?":                                "What is your GPA",
		"Mailing Address:":                                 "Mailing Address",
		"School\tName":                                     "School Name",
	}

	for input, want := range cases {
		assert.Equal(t, want, CleanQuery(input), "input %q", input)
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := map[string]string{
		"Field of Study *": "fieldofstudy",
		"field_of_study":   "fieldofstudy",
		"E-mail Address":   "emailaddress",
		"GPA (required)":   "gpa",
		"Class of 2026":    "classof2026",
	}

	for input, want := range cases {
		assert.Equal(t, want, NormalizeKey(input), "input %q", input)
	}
}

func TestQueryVariants(t *testing.T) {
	variants := QueryVariants("Field of Study")
	assert.Equal(t, []string{
		"Field of Study",
		"Field of Study degree",
		"Field of Study education",
	}, variants)
}

func TestDetectObviousField(t *testing.T) {
	t.Run("recognized fields", func(t *testing.T) {
		cases := map[string]FieldCategory{
			"First Name":                  CategoryName,
			"Email Address *":             CategoryEmail,
			"GPA":                         CategoryGPA,
			"Cumulative Grade Point Average": CategoryGPA,
			"Phone Number":                CategoryPhone,
			"Field of Study":              CategoryMajor,
			"Intended Major":              CategoryMajor,
			"High School":                 CategorySchool,
			"Expected Graduation Date":    CategoryGraduation,
			"Date of Birth":               CategoryBirthDate,
			"Tribal Affiliation":          CategoryTribe,
			"Mailing Address":             CategoryAddress,
			"State":                       CategoryState,
			"School Name":                 CategorySchool,
		}
		for label, want := range cases {
			got, ok := DetectObviousField(label)
			assert.True(t, ok, "label %q should be obvious", label)
			assert.Equal(t, want, got, "label %q", label)
		}
	})

	t.Run("free-response prompts are not obvious", func(t *testing.T) {
		for _, label := range []string{
			"Describe a challenge you overcame",
			"Personal Statement",
			"Why do you deserve this scholarship?",
			"Hometown",
			"",
		} {
			_, ok := DetectObviousField(label)
			assert.False(t, ok, "label %q should not be obvious", label)
		}
	})
}

func TestIsHighStakes(t *testing.T) {
	assert.True(t, IsHighStakes(CategoryName))
	assert.True(t, IsHighStakes(CategoryEmail))
	assert.True(t, IsHighStakes(CategoryPhone))
	assert.True(t, IsHighStakes(CategoryGPA))

	assert.False(t, IsHighStakes(CategoryMajor))
	assert.False(t, IsHighStakes(CategoryTribe))
	assert.False(t, IsHighStakes(CategoryCity))
}
