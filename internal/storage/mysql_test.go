package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"smart-hire-go/internal/config"
	"smart-hire-go/internal/storage/models"
)

// newTestMySQL 连接本地MySQL；未设置MYSQL_HOST时跳过
func newTestMySQL(t *testing.T) *MySQL {
	t.Helper()
	host := os.Getenv("MYSQL_HOST")
	if host == "" {
		t.Skip("未设置MYSQL_HOST，跳过MySQL集成测试")
	}

	database := os.Getenv("MYSQL_DATABASE")
	if database == "" {
		database = "smart_hire_test"
	}

	m, err := NewMySQL(&config.MySQLConfig{
		Host:     host,
		Port:     3306,
		Username: envOr("MYSQL_USER", "root"),
		Password: os.Getenv("MYSQL_PASSWORD"),
		Database: database,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestUpsertCandidateAndList(t *testing.T) {
	m := newTestMySQL(t)
	ctx := context.Background()

	candidateID := fmt.Sprintf("test-cand-%d", time.Now().UnixNano())
	profileJSON, _ := json.Marshal(map[string]interface{}{"skills": []string{"python"}})

	candidate := &models.Candidate{
		CandidateID:      candidateID,
		Name:             "Test Candidate",
		OriginalFilename: "resume.pdf",
		RawTextMD5:       "abc123",
		ProfileJSON:      datatypes.JSON(profileJSON),
		ResumeText:       "python developer, 5 years",
		ProcessingStatus: models.StatusProcessed,
	}
	require.NoError(t, m.UpsertCandidate(ctx, candidate))

	// 再次写入覆盖状态而不报错
	candidate.ProcessingStatus = models.StatusDuplicate
	require.NoError(t, m.UpsertCandidate(ctx, candidate))

	got, err := m.GetCandidateByID(ctx, candidateID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDuplicate, got.ProcessingStatus)
}

func TestGetCandidateByIDNotFound(t *testing.T) {
	m := newTestMySQL(t)

	_, err := m.GetCandidateByID(context.Background(), "no-such-candidate")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertMatchScoreIdempotent(t *testing.T) {
	m := newTestMySQL(t)
	ctx := context.Background()

	suffix := time.Now().UnixNano()
	candidateID := fmt.Sprintf("test-cand-%d", suffix)
	jobID := fmt.Sprintf("test-job-%d", suffix)

	require.NoError(t, m.UpsertCandidate(ctx, &models.Candidate{
		CandidateID:      candidateID,
		ProcessingStatus: models.StatusProcessed,
	}))
	require.NoError(t, m.UpsertJob(ctx, &models.Job{
		JobID:              jobID,
		JobTitle:           "ML Engineer",
		JobDescriptionText: "python required",
		Status:             "ACTIVE",
	}))

	score := &models.MatchScore{
		CandidateID: candidateID,
		JobID:       jobID,
		Score:       0.5,
		Eligible:    true,
		EvaluatedAt: time.Now(),
	}
	require.NoError(t, m.UpsertMatchScore(ctx, score))

	// 同一(候选人, 岗位)重复评估只更新得分，不产生第二条记录
	score.Score = 0.8
	require.NoError(t, m.UpsertMatchScore(ctx, score))

	scores, err := m.ListMatchScoresByJob(ctx, jobID, false)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.InDelta(t, 0.8, scores[0].Score, 1e-9)
}
