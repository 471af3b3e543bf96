package maintain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maqua/member-lookup/internal/record"
)

var today = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func day(iso string) time.Time {
	d, err := time.Parse("2006-01-02", iso)
	if err != nil {
		panic(err)
	}
	return d
}

func maintFollowup(date string) record.Record {
	return record.Record{"ower_name": "維修幫小陳", "followTime": date, "customer_name": "C115 水站"}
}

func TestExtractLatestAndPrevious(t *testing.T) {
	followups := []record.Record{
		maintFollowup("2024-01-10"),
		maintFollowup("2023-12-27"),
		maintFollowup("2023-12-13"),
		{"ower_name": "業務001", "followTime": "2024-01-14"}, // not maintenance
	}

	summary := Extract("C115", followups, nil, Options{OwnerKeyword: "客服003"}, today)

	assert.Equal(t, "C115", summary.CustomerCode)
	assert.Equal(t, "C115 水站", summary.CustomerName)
	assert.Equal(t, "2024-01-10", summary.LatestServiceDate)
	assert.Equal(t, "2023-12-27", summary.PreviousServiceDate)
	// No tasks: the previous service date is the next-service base.
	assert.Equal(t, "2023-12-27", summary.NextServiceDate)
}

func TestExtractAllFutureTakesEarliest(t *testing.T) {
	followups := []record.Record{
		maintFollowup("2024-02-20"),
		maintFollowup("2024-02-01"),
	}

	summary := Extract("C115", followups, nil, Options{}, today)
	assert.Equal(t, "2024-02-01", summary.LatestServiceDate)
	assert.Equal(t, "", summary.PreviousServiceDate)
}

func TestExtractNoParsableDatesFallsBackToTasks(t *testing.T) {
	followups := []record.Record{
		{"ower_name": "維修幫", "followTime": "invalid"},
	}
	tasks := []record.Record{
		{"ower_name": "客服003", "startDate": "2024-02-01"},
	}

	summary := Extract("C115", followups, tasks, Options{OwnerKeyword: "客服003"}, today)
	assert.Equal(t, "", summary.LatestServiceDate)
	assert.Equal(t, "2024-02-01", summary.NextServiceDate)
}

func TestExtractNoMaintenanceNoTasks(t *testing.T) {
	summary := Extract("C115", nil, nil, Options{}, today)
	assert.Equal(t, Summary{CustomerCode: "C115"}, summary)
}

func TestSelectTaskBaseDatePriority(t *testing.T) {
	latest := day("2024-01-10")
	tests := []struct {
		name  string
		tasks []record.Record
		want  string
	}{
		{
			"owner_future_beats_general_future",
			[]record.Record{
				{"ower_name": "業務001", "startDate": "2024-01-20"},
				{"ower_name": "客服003", "startDate": "2024-01-25"},
			},
			"2024-01-25",
		},
		{
			"general_future_beats_owner_after_latest",
			[]record.Record{
				{"ower_name": "客服003", "startDate": "2024-01-12"}, // after latest, not after today
				{"ower_name": "業務001", "startDate": "2024-02-01"},
			},
			"2024-02-01",
		},
		{
			"owner_after_latest_beats_general_after_latest",
			[]record.Record{
				{"ower_name": "業務001", "startDate": "2024-01-14"},
				{"ower_name": "客服003", "startDate": "2024-01-13"},
			},
			"2024-01-13",
		},
		{
			"owner_past_most_recent",
			[]record.Record{
				{"ower_name": "客服003", "startDate": "2023-12-01"},
				{"ower_name": "客服003", "startDate": "2023-12-20"},
				{"ower_name": "業務001", "startDate": "2024-01-05"},
			},
			"2023-12-20",
		},
		{
			"general_past_when_no_owner",
			[]record.Record{
				{"ower_name": "業務001", "startDate": "2023-11-01"},
				{"ower_name": "業務001", "startDate": "2023-11-20"},
			},
			"2023-11-20",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectTaskBaseDate(tt.tasks, "客服003", latest, time.Time{}, false, today)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestSelectTaskBaseDateFieldFallback(t *testing.T) {
	tasks := []record.Record{
		{"ower_name": "客服003", "planDate": "2024-02-10"},
	}
	got, ok := SelectTaskBaseDate(tasks, "客服003", day("2024-01-10"), time.Time{}, false, today)
	require.True(t, ok)
	assert.Equal(t, "2024-02-10", got.Format("2006-01-02"))

	tasks = []record.Record{
		{"ower_name": "客服003", "endDate": "2024-02-11"},
	}
	got, ok = SelectTaskBaseDate(tasks, "客服003", day("2024-01-10"), time.Time{}, false, today)
	require.True(t, ok)
	assert.Equal(t, "2024-02-11", got.Format("2006-01-02"))
}

func TestSelectTaskBaseDateNoTasksUsesPrevious(t *testing.T) {
	got, ok := SelectTaskBaseDate(nil, "客服003", day("2024-01-10"), day("2023-12-27"), true, today)
	require.True(t, ok)
	assert.Equal(t, "2023-12-27", got.Format("2006-01-02"))
}

func TestUpcomingTaskDateGapCap(t *testing.T) {
	tasks := []record.Record{
		{"ower_name": "客服003", "startDate": "2024-06-01"}, // beyond gap
		{"ower_name": "客服003", "startDate": "2024-01-20"},
	}
	got, ok := UpcomingTaskDate(tasks, today, Options{OwnerKeyword: "客服003", MaxGapDays: 30})
	require.True(t, ok)
	assert.Equal(t, "2024-01-20", got.Format("2006-01-02"))
}

func TestLatestServiceRecord(t *testing.T) {
	records := []record.Record{
		{"followTime": "2024-02-01"},
		{"followTime": "2024-01-10"},
		{"followTime": "2023-12-01"},
	}
	rec := LatestServiceRecord(records, today)
	require.NotNil(t, rec)
	assert.Equal(t, "2024-01-10", rec.Get("followTime"))
}

func TestLatestServiceRecordAllFuture(t *testing.T) {
	records := []record.Record{
		{"followTime": "2024-03-01"},
		{"followTime": "2024-02-01"},
	}
	rec := LatestServiceRecord(records, today)
	require.NotNil(t, rec)
	assert.Equal(t, "2024-02-01", rec.Get("followTime"))
}

func TestLatestServiceRecordNoDates(t *testing.T) {
	records := []record.Record{{"customer_name": "甲"}}
	assert.Equal(t, records[0], LatestServiceRecord(records, today))
	assert.Nil(t, LatestServiceRecord(nil, today))
}

func TestRecordByDate(t *testing.T) {
	records := []record.Record{
		{"followTime": "2024-01-10T09:00:00", "id": "a"},
		{"followTime": "2024-01-11", "id": "b"},
	}
	rec := RecordByDate(records, "2024-01-10")
	require.NotNil(t, rec)
	assert.Equal(t, "a", rec.Get("id"))
	assert.Nil(t, RecordByDate(records, "2024-01-12"))
	assert.Nil(t, RecordByDate(records, ""))
}

func TestResolveNextServiceDate(t *testing.T) {
	t.Run("two_future_dates_picks_second_to_last", func(t *testing.T) {
		info := map[string]string{"__raw__": "下次 2024-02-01，排程 2024-03-01，備註 2024-04-01"}
		got := ResolveNextServiceDate("2024-01-10", info, nil, today)
		assert.Equal(t, "2024-03-01", got)
	})

	t.Run("one_future_date", func(t *testing.T) {
		info := map[string]string{"內容": "下次保養 2024-02-01"}
		got := ResolveNextServiceDate("2024-01-10", info, nil, today)
		assert.Equal(t, "2024-02-01", got)
	})

	t.Run("no_latest_uses_today_onward", func(t *testing.T) {
		info := map[string]string{"__raw__": "2023-12-01 與 2024-02-01"}
		got := ResolveNextServiceDate("", info, nil, today)
		assert.Equal(t, "2024-02-01", got)
	})

	t.Run("all_past_takes_newest", func(t *testing.T) {
		info := map[string]string{"__raw__": "2023-11-01 和 2023-12-01"}
		got := ResolveNextServiceDate("", info, nil, today)
		assert.Equal(t, "2023-12-01", got)
	})

	t.Run("record_follow_context_scanned", func(t *testing.T) {
		records := []record.Record{{"followContext": "約 2024-02-15 回訪"}}
		got := ResolveNextServiceDate("2024-01-10", nil, records, today)
		assert.Equal(t, "2024-02-15", got)
	})

	t.Run("no_dates", func(t *testing.T) {
		assert.Equal(t, "", ResolveNextServiceDate("", map[string]string{"內容": "無排程"}, nil, today))
	})
}

func TestPaymentStatus(t *testing.T) {
	records := []record.Record{
		{"ower_name": "出納008", "followTime": "2024-01-05", "followContext": "已收一月月費"},
		{"ower_name": "出納008", "followTime": "2023-12-05", "followContext": "已收十二月月費"},
		{"ower_name": "維修幫", "followTime": "2024-01-10"},
	}
	assert.Equal(t, "2024-01-05 · 已收一月月費", PaymentStatus(records, today))
}

func TestPaymentStatusNoNote(t *testing.T) {
	records := []record.Record{
		{"ower_name": "出納008", "followTime": "2024-01-05"},
	}
	assert.Equal(t, "2024-01-05", PaymentStatus(records, today))
}

func TestPaymentStatusIgnoresFuture(t *testing.T) {
	records := []record.Record{
		{"ower_name": "出納008", "followTime": "2024-02-05"},
	}
	assert.Equal(t, "", PaymentStatus(records, today))
}
