package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smart-hire-go/internal/types"
)

// TestParseProfileExtractsSkills 技能按小写子串匹配提取
func TestParseProfileExtractsSkills(t *testing.T) {
	text := "Senior engineer with Python and Deep Learning experience, shipped NLP models with PyTorch."

	profile := ParseProfile(text)

	assert.ElementsMatch(t, []string{"python", "deep learning", "nlp", "pytorch"}, profile.Skills)
	assert.True(t, profile.HasSkill("python"))
	assert.False(t, profile.HasSkill("tensorflow"))
}

// TestParseProfileExperienceYears 经验年限的正则识别
func TestParseProfileExperienceYears(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *float64
	}{
		{name: "plain years", text: "I have 5 years of backend experience", want: floatPtr(5)},
		{name: "plus suffix", text: "3+ years working on ML infrastructure", want: floatPtr(3)},
		{name: "singular year", text: "1 year of internship", want: floatPtr(1)},
		{name: "no mention", text: "passionate fresh graduate", want: nil},
		{name: "word not number", text: "five years of experience", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := ParseProfile(tt.text)
			if tt.want == nil {
				assert.Nil(t, profile.ExperienceYears, "未命中时应返回nil而不是0")
			} else {
				require.NotNil(t, profile.ExperienceYears)
				assert.Equal(t, *tt.want, *profile.ExperienceYears)
			}
		})
	}
}

// TestParseProfileEducationFirstMatchWins 学历按词表顺序取第一个命中
func TestParseProfileEducationFirstMatchWins(t *testing.T) {
	// 文本同时包含master和bachelor，bachelor在词表中排前
	profile := ParseProfile("Master of Science; previously Bachelor of Engineering")
	assert.Equal(t, types.EducationBachelor, profile.Education)

	profile = ParseProfile("PhD in computer science")
	assert.Equal(t, types.EducationPhD, profile.Education)

	profile = ParseProfile("completed B.Tech at IIT")
	assert.Equal(t, types.EducationBTech, profile.Education)

	profile = ParseProfile("no formal degree mentioned")
	assert.Equal(t, types.EducationNone, profile.Education)
}

// TestParseProfileCertifications 证书词表匹配
func TestParseProfileCertifications(t *testing.T) {
	profile := ParseProfile("AWS Certified Solutions Architect, also familiar with GCP")
	assert.ElementsMatch(t, []string{"aws certified", "gcp"}, profile.Certifications)

	profile = ParseProfile("no certs here")
	assert.Empty(t, profile.Certifications)
}

// TestParseProfileEmptyText 空文本返回零值画像
func TestParseProfileEmptyText(t *testing.T) {
	profile := ParseProfile("")

	assert.Empty(t, profile.Skills)
	assert.Nil(t, profile.ExperienceYears)
	assert.Equal(t, types.EducationNone, profile.Education)
	assert.Empty(t, profile.Certifications)
}

func floatPtr(f float64) *float64 {
	return &f
}
