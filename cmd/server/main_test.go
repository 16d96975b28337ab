package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"orderdash/internal/config"
	"orderdash/internal/models"
)

const reportCSV = `order_id,order_status,order_purchase_timestamp,order_delivered_customer_date,order_estimated_delivery_date,delivery_time
o1,delivered,2018-01-01 09:00:00,2018-01-05 10:00:00,2018-01-10 00:00:00,4
o2,shipped,2018-01-02 18:30:00,,2018-01-20 00:00:00,
o3,delivered,2018-02-11 07:00:00,2018-02-13 07:00:00,2018-02-25 00:00:00,2
`

func reportConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.csv")
	require.NoError(t, os.WriteFile(path, []byte(reportCSV), 0o644))
	v := viper.New()
	v.Set("data.path", path)
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	return cfg
}

func TestRunReportJSON(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runReport(context.Background(), &out, reportConfig(t), "", "", "json"))

	var data models.DashboardData
	require.NoError(t, json.Unmarshal(out.Bytes(), &data))
	assert.Equal(t, 3, data.Rows)
	require.NotNil(t, data.Summary)
	assert.Equal(t, 3, data.Summary.TotalOrders)
	assert.Equal(t, 6.0, data.Summary.TotalRevenue)
	assert.NotEmpty(t, data.Summary.RevenueDisplay)
	assert.Equal(t, "IDR", data.Summary.Currency)
	assert.Equal(t, []models.MonthlyOrders{
		{Month: "2018-01", TotalOrders: 2},
		{Month: "2018-02", TotalOrders: 1},
	}, data.MonthlyOrders)
	assert.Empty(t, data.Unavailable)
}

func TestRunReportYAMLWithRange(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runReport(context.Background(), &out, reportConfig(t), "2018-02-01", "2018-02-28", "yaml"))

	var data models.DashboardData
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &data))
	assert.Equal(t, 1, data.Rows)
	require.NotNil(t, data.DeliveryDelta)
	assert.Equal(t, []int{11}, data.DeliveryDelta.Days)
}

func TestRunReportRejectsBadInput(t *testing.T) {
	cfg := reportConfig(t)
	var out bytes.Buffer
	assert.Error(t, runReport(context.Background(), &out, cfg, "", "", "xml"))
	assert.Error(t, runReport(context.Background(), &out, cfg, "2018/01/01", "", "json"))
	assert.Empty(t, out.String())
}

func TestParseDay(t *testing.T) {
	d, err := parseDay("")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = parseDay("2018-03-04")
	require.NoError(t, err)
	assert.Equal(t, "2018-03-04", d.Format("2006-01-02"))
}
