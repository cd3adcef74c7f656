package period

import (
	"errors"
	"testing"
	"time"
)

func TestResolve_MonthEndIsLastInstantOfMonth(t *testing.T) {
	r := NewResolver(time.UTC)

	for year := 2023; year <= 2024; year++ {
		for m := 1; m <= 12; m++ {
			iv, err := r.Resolve(Spec{Granularity: Month, Year: year, Month: m})
			if err != nil {
				t.Fatalf("Resolve(%d-%d) error: %v", year, m, err)
			}
			if iv.Start.Day() != 1 || iv.Start.Hour() != 0 || iv.Start.Month() != time.Month(m) {
				t.Errorf("Resolve(%d-%d).Start = %v, want first instant of month", year, m, iv.Start)
			}
			if got, want := iv.End.Day(), DaysIn(year, time.Month(m)); got != want {
				t.Errorf("Resolve(%d-%d).End.Day() = %d, want %d", year, m, got, want)
			}
			if iv.End.Hour() != 23 || iv.End.Minute() != 59 || iv.End.Second() != 59 {
				t.Errorf("Resolve(%d-%d).End = %v, want 23:59:59", year, m, iv.End)
			}
		}
	}
}

func TestResolve_QuarterAndYear(t *testing.T) {
	r := NewResolver(time.UTC)

	tests := []struct {
		name      string
		spec      Spec
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "Q1",
			spec:      Spec{Granularity: Quarter, Year: 2024, Quarter: 1},
			wantStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "Q4",
			spec:      Spec{Granularity: Quarter, Year: 2024, Quarter: 4},
			wantStart: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		{
			name:      "year",
			spec:      Spec{Granularity: Year, Year: 2023},
			wantStart: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := r.Resolve(tt.spec)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			if !iv.Start.Equal(tt.wantStart) || !iv.End.Equal(tt.wantEnd) {
				t.Errorf("Resolve() = [%v, %v], want [%v, %v]", iv.Start, iv.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestResolve_QuartersTileYear(t *testing.T) {
	r := NewResolver(time.UTC)
	year := r.YearInterval(2024)

	prevEnd := year.Start.Add(-time.Second)
	for q := 1; q <= 4; q++ {
		iv, err := r.Resolve(Spec{Granularity: Quarter, Year: 2024, Quarter: q})
		if err != nil {
			t.Fatalf("Resolve(Q%d) error: %v", q, err)
		}
		if !iv.Start.Equal(prevEnd.Add(time.Second)) {
			t.Errorf("Q%d starts at %v, want %v", q, iv.Start, prevEnd.Add(time.Second))
		}
		prevEnd = iv.End
	}
	if !prevEnd.Equal(year.End) {
		t.Errorf("Q4 ends at %v, want %v", prevEnd, year.End)
	}
}

func TestResolve_Rolling(t *testing.T) {
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	r := NewResolver(time.UTC).WithClock(func() time.Time { return now })

	iv, err := r.Resolve(Spec{})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if !iv.End.Equal(now) {
		t.Errorf("End = %v, want %v", iv.End, now)
	}
	if want := time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC); !iv.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", iv.Start, want)
	}
}

func TestBaseline_IsPriorCalendarMonth(t *testing.T) {
	r := NewResolver(time.UTC)

	tests := []struct {
		name string
		spec Spec
		want Interval
	}{
		{
			name: "month",
			spec: Spec{Granularity: Month, Year: 2024, Month: 3},
			want: r.MonthInterval(2024, time.February),
		},
		{
			name: "january wraps to december",
			spec: Spec{Granularity: Month, Year: 2024, Month: 1},
			want: r.MonthInterval(2023, time.December),
		},
		{
			name: "quarter uses month before quarter start",
			spec: Spec{Granularity: Quarter, Year: 2024, Quarter: 3},
			want: r.MonthInterval(2024, time.June),
		},
		{
			name: "year uses december of prior year",
			spec: Spec{Granularity: Year, Year: 2024},
			want: r.MonthInterval(2023, time.December),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := r.Resolve(tt.spec)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			got := r.Baseline(iv)
			if !got.Start.Equal(tt.want.Start) || !got.End.Equal(tt.want.End) {
				t.Errorf("Baseline() = [%v, %v], want [%v, %v]", got.Start, got.End, tt.want.Start, tt.want.End)
			}
		})
	}
}

func TestWeeks_FixedBuckets(t *testing.T) {
	r := NewResolver(time.UTC)

	tests := []struct {
		month   time.Month
		lastDay int
	}{
		{time.April, 30},
		{time.February, 29},
		{time.March, 31},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			weeks := r.Weeks(2024, tt.month)
			wantDays := [4][2]int{{1, 7}, {8, 14}, {15, 21}, {22, tt.lastDay}}
			for i, w := range weeks {
				if w.Start.Day() != wantDays[i][0] || w.End.Day() != wantDays[i][1] {
					t.Errorf("week %d = days %d-%d, want %d-%d", i+1, w.Start.Day(), w.End.Day(), wantDays[i][0], wantDays[i][1])
				}
				if w.End.Hour() != 23 || w.End.Second() != 59 {
					t.Errorf("week %d ends at %v, want 23:59:59", i+1, w.End)
				}
			}
		})
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name      string
		spec      Spec
		wantField string
	}{
		{"valid month", Spec{Granularity: Month, Year: 2024, Month: 3}, ""},
		{"valid quarter", Spec{Granularity: Quarter, Year: 2024, Quarter: 2}, ""},
		{"valid year", Spec{Granularity: Year, Year: 2024}, ""},
		{"missing year", Spec{Granularity: Month, Month: 3}, "year"},
		{"lowest year", Spec{Granularity: Year, Year: MinYear}, ""},
		{"highest year", Spec{Granularity: Year, Year: MaxYear}, ""},
		{"year before range", Spec{Granularity: Year, Year: MinYear - 1}, "year"},
		{"year past nanosecond range", Spec{Granularity: Month, Year: 2300, Month: 1}, "year"},
		{"negative year", Spec{Granularity: Year, Year: -5}, "year"},
		{"bad type", Spec{Granularity: "decade", Year: 2024}, "type"},
		{"week is not a request type", Spec{Granularity: Week, Year: 2024}, "type"},
		{"month out of range", Spec{Granularity: Month, Year: 2024, Month: 13}, "month"},
		{"missing quarter", Spec{Granularity: Quarter, Year: 2024}, "quarter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestSpec_Label(t *testing.T) {
	tests := []struct {
		spec Spec
		want string
	}{
		{Spec{Granularity: Month, Year: 2024, Month: 3}, "Mar 24"},
		{Spec{Granularity: Quarter, Year: 2024, Quarter: 1}, "2024-Q1"},
		{Spec{Granularity: Year, Year: 2024}, "2024"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.spec.Label(); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		g       Granularity
		token   string
		want    Spec
		wantErr bool
	}{
		{Month, "3-2024", Spec{Granularity: Month, Year: 2024, Month: 3}, false},
		{Quarter, "2-2024", Spec{Granularity: Quarter, Year: 2024, Quarter: 2}, false},
		{Quarter, "Q4-2023", Spec{Granularity: Quarter, Year: 2023, Quarter: 4}, false},
		{Year, "2022", Spec{Granularity: Year, Year: 2022}, false},
		{Month, "13-2024", Spec{}, true},
		{Month, "2024", Spec{}, true},
		{Year, "abc", Spec{}, true},
		{Quarter, "", Spec{}, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.g)+"/"+tt.token, func(t *testing.T) {
			got, err := ParseToken(tt.g, tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseToken() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
