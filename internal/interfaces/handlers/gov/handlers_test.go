package gov

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"csx-backend/internal/application/regulator"
	"csx-backend/internal/domain"
	"csx-backend/internal/pkg/constants"
	"csx-backend/internal/pkg/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardAndIndustryAnalysis(t *testing.T) {
	db := testdb.Open(t)
	h := &Handlers{Service: &regulator.Service{DB: db}}
	owner := testdb.User(t, db, "Owner", constants.Company)
	c := testdb.Company(t, db, owner.UserID, "Alpha Steel")
	require.NoError(t, db.Create(&domain.CarbonScore{
		CompanyID: c.CompanyID, Score: decimal.NewFromInt(85), Category: domain.CategoryExcellent, DataRecordID: c.CompanyID,
	}).Error)

	app := fiber.New()
	app.Get("/gov/dashboard", h.Dashboard)
	app.Get("/gov/industry-analysis", h.IndustryAnalysis)

	resp, err := app.Test(httptest.NewRequest("GET", "/gov/dashboard", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	data := out["data"].(map[string]interface{})
	stats := data["statistics"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["excellent_companies"])
	board := data["leaderboard"].([]interface{})
	require.Len(t, board, 1)
	assert.Equal(t, "Alpha Steel", board[0].(map[string]interface{})["company_name"])

	resp, err = app.Test(httptest.NewRequest("GET", "/gov/industry-analysis", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	rows := out["data"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Manufacturing", rows[0].(map[string]interface{})["industry"])
}

func TestCompaniesIndividualsAndDistribution(t *testing.T) {
	db := testdb.Open(t)
	h := &Handlers{Service: &regulator.Service{DB: db}}
	owner := testdb.User(t, db, "Owner", constants.Company)
	for name, v := range map[string]int64{"Alpha Steel": 85, "Beta Foods": 55, "Gamma Steel": 30} {
		c := testdb.Company(t, db, owner.UserID, name)
		require.NoError(t, db.Create(&domain.CarbonScore{
			CompanyID: c.CompanyID, Score: decimal.NewFromInt(v), Category: domain.CategoryFor(decimal.NewFromInt(v)), DataRecordID: c.CompanyID,
		}).Error)
	}
	ivy := testdb.User(t, db, "Ivy", constants.Individual)
	testdb.Fund(t, db, ivy.UserID, 25)

	app := fiber.New()
	app.Get("/gov/companies", h.Companies)
	app.Get("/gov/individuals", h.Individuals)
	app.Get("/gov/score-distribution", h.ScoreDistribution)
	get := func(url string) map[string]interface{} {
		resp, err := app.Test(httptest.NewRequest("GET", url, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var out map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	data := get("/gov/companies?search=steel&sortOrder=asc&limit=1&page=2")["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, float64(2), data["totalPages"])
	assert.Equal(t, float64(2), data["page"])
	rows := data["companies"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "Alpha Steel", rows[0].(map[string]interface{})["company_name"])
	assert.Equal(t, domain.CategoryExcellent, rows[0].(map[string]interface{})["score_category"])

	data = get("/gov/individuals")["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	people := data["individuals"].([]interface{})
	assert.Equal(t, "Ivy", people[0].(map[string]interface{})["full_name"])
	assert.Equal(t, "25", people[0].(map[string]interface{})["credit_balance"])

	buckets := get("/gov/score-distribution")["data"].([]interface{})
	require.Len(t, buckets, 4)
	assert.Equal(t, domain.CategoryExcellent, buckets[0].(map[string]interface{})["category"])
	assert.Equal(t, float64(1), buckets[2].(map[string]interface{})["count"])
	assert.Equal(t, float64(1), buckets[3].(map[string]interface{})["count"])
}
