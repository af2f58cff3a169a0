package model

import (
	"testing"
	"time"
)

func TestStatus_Enumeration(t *testing.T) {
	tests := []struct {
		status   Status
		valid    bool
		terminal bool
		labelIT  string
		labelEN  string
	}{
		{StatusNew, true, false, "Nuova richiesta", "New request"},
		{StatusInProgress, true, false, "In lavorazione", "In progress"},
		{StatusConfirmed, true, false, "Confermata", "Confirmed"},
		{StatusCompleted, true, true, "Completata", "Completed"},
		{StatusCancelled, true, true, "Cancellata", "Cancelled"},
		{Status("archiviata"), false, false, "archiviata", "archiviata"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, ожидается %v", got, tt.valid)
			}
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, ожидается %v", got, tt.terminal)
			}
			if got := tt.status.Label("it"); got != tt.labelIT {
				t.Errorf("Label(it) = %q, ожидается %q", got, tt.labelIT)
			}
			if got := tt.status.Label("en"); got != tt.labelEN {
				t.Errorf("Label(en) = %q, ожидается %q", got, tt.labelEN)
			}
		})
	}
}

func TestStatus_LabelUnknownLangFallsBackToItalian(t *testing.T) {
	if got := StatusConfirmed.Label("de"); got != "Confermata" {
		t.Errorf("Label(de) = %q, ожидается Confermata", got)
	}
}

func TestPriority_RankAndLabels(t *testing.T) {
	if !(PriorityHigh.Rank() > PriorityMedium.Rank() && PriorityMedium.Rank() > PriorityLow.Rank()) {
		t.Error("ожидается alta > media > bassa")
	}
	if Priority("urgente").IsValid() {
		t.Error("urgente не должен быть допустимым приоритетом")
	}
	if got := PriorityHigh.Label("en"); got != "High" {
		t.Errorf("Label(en) = %q, ожидается High", got)
	}
	if got := PriorityLow.Label("it"); got != "Bassa" {
		t.Errorf("Label(it) = %q, ожидается Bassa", got)
	}
}

func TestRequest_WaitingDays(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata недоступна: %v", err)
	}
	created := time.Date(2025, 3, 10, 22, 30, 0, 0, time.UTC) // 23:30 в Риме
	completed := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		req  Request
		want int
	}{
		{
			name: "активный — до now",
			req:  Request{Status: StatusInProgress, CreatedAt: created},
			want: 10,
		},
		{
			name: "completata — до даты завершения",
			req:  Request{Status: StatusCompleted, CreatedAt: created, CompletedAt: &completed},
			want: 4,
		},
		{
			name: "cancellata без даты завершения — до now",
			req:  Request{Status: StatusCancelled, CreatedAt: created},
			want: 10,
		},
		{
			name: "активный с датой завершения — до now",
			req:  Request{Status: StatusNew, CreatedAt: created, CompletedAt: &completed},
			want: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.WaitingDays(now, rome); got != tt.want {
				t.Errorf("WaitingDays() = %d, ожидается %d", got, tt.want)
			}
		})
	}
}

func TestRequest_WaitingDaysUsesCalendarDates(t *testing.T) {
	created := time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)
	now := time.Date(2025, 1, 2, 0, 1, 0, 0, time.UTC)
	r := Request{Status: StatusNew, CreatedAt: created}

	if got := r.WaitingDays(now, time.UTC); got != 1 {
		t.Errorf("WaitingDays() = %d, ожидается 1 (смена даты)", got)
	}
	if got := r.WaitingDays(created, nil); got != 0 {
		t.Errorf("WaitingDays() в день создания = %d, ожидается 0", got)
	}
}

func TestRequest_IsOverdueAlwaysFalse(t *testing.T) {
	for _, s := range AllStatuses {
		r := Request{Status: s, CreatedAt: time.Now().AddDate(-1, 0, 0)}
		if r.IsOverdue() {
			t.Errorf("IsOverdue() = true для %s", s)
		}
	}
}

func TestRequest_FullNameAndOptionals(t *testing.T) {
	r := Request{FirstName: "Giovanni", LastName: "Verga"}
	if got := r.FullName(); got != "Giovanni Verga" {
		t.Errorf("FullName() = %q", got)
	}
	if StringOrEmpty(nil) != "" {
		t.Error("StringOrEmpty(nil) должен вернуть пустую строку")
	}
	s := "maria"
	if StringOrEmpty(&s) != "maria" {
		t.Error("StringOrEmpty(&s) должен вернуть значение")
	}
}
