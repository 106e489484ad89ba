package bayeux

import (
	"testing"
	"time"
)

func TestMessage_TimestampAsTime(t *testing.T) {
	m := Message{Timestamp: "2020-05-01T06:28:51.00"}
	got, err := m.TimestampAsTime()
	if err != nil {
		t.Errorf("expected a valid timestamp, got err %q", err)
	}
	if want := time.Date(2020, time.May, 1, 6, 28, 51, 0, time.UTC); want != got {
		t.Errorf("unexpected time parse; want %v, got %v", want, got)
	}
}

func TestMessage_ParseError(t *testing.T) {
	testCases := []struct {
		name      string
		errorStr  string
		expected  MessageError
		shouldErr bool
	}{
		// Examples taken from specification
		{
			"no error args",
			"401::No client ID",
			MessageError{401, []string{""}, "No client ID"},
			false,
		},
		{
			"one nonsense error arg",
			"402:xj3sjdsjdsjad:Unknown Client ID",
			MessageError{402, []string{"xj3sjdsjdsjad"}, "Unknown Client ID"},
			false,
		},
		{
			"two args",
			"403:xj3sjdsjdsjad,/foo/bar:Subscription denied",
			MessageError{403, []string{"xj3sjdsjdsjad", "/foo/bar"}, "Subscription denied"},
			false,
		},
		{
			"one channel name arg",
			"404:/foo/bar:Unknown Channel",
			MessageError{404, []string{"/foo/bar"}, "Unknown Channel"},
			false,
		},
		// Following cases aren't from the specification directly
		{
			"invalid status code",
			"4o4:/foo/bar:Broken Error Code",
			MessageError{},
			true,
		},
		{
			"invalid error string",
			"404-/foo/bar-Unknown Channel",
			MessageError{},
			true,
		},
	}

	for _, testCase := range testCases {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			m := Message{Error: tc.errorStr}
			got, err := m.ParseError()
			if err != nil && tc.shouldErr {
				return
			}
			if err != nil && !tc.shouldErr {
				t.Errorf("expected a parsed MessageError but got an err: %q", err)
			}
			if err == nil && tc.shouldErr {
				t.Error("expected an error but didn't get one")
			}

			want := tc.expected
			if want.ErrorCode != got.ErrorCode {
				t.Errorf("error parsing error code; want %v, got %v", want.ErrorCode, got.ErrorCode)
			}

			if want.ErrorMessage != got.ErrorMessage {
				t.Errorf("error parsing error message; want %v, got %v", want.ErrorMessage, got.ErrorMessage)
			}

			if len(want.ErrorArgs) != len(got.ErrorArgs) {
				t.Errorf("error parsing error args (found different lengths); want %v, got %v", want.ErrorArgs, got.ErrorArgs)
			}

			for index, arg := range want.ErrorArgs {
				if arg != got.ErrorArgs[index] {
					t.Errorf("error parsing error args (found different items at same position %d); want %v, got %v", index, want.ErrorArgs, got.ErrorArgs)
				}
			}
		})
	}
}

func TestMessage_GetExt(t *testing.T) {
	testCases := []struct {
		name         string
		message      *Message
		shouldCreate bool
		want         map[string]interface{}
	}{
		{
			name:         "nil extension is initialized as a map with create=true",
			message:      &Message{},
			shouldCreate: true,
			want:         make(map[string]interface{}),
		},
		{
			name:         "nil extension is not initialized with create=false",
			message:      &Message{},
			shouldCreate: false,
			want:         nil,
		},
		{
			name:         "existing extension is returned as-is",
			message:      &Message{Ext: map[string]interface{}{"token": "abc"}},
			shouldCreate: true,
			want:         map[string]interface{}{"token": "abc"},
		},
	}

	for _, testCase := range testCases {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			got := tc.message.GetExt(tc.shouldCreate)
			if tc.want == nil && got != nil {
				t.Errorf("expected nil ext, got %v", got)
			}
			if tc.want != nil && got == nil {
				t.Error("expected an ext map, got nil")
			}
			for key, value := range tc.want {
				if got[key] != value {
					t.Errorf("unexpected ext value for %q; want %v, got %v", key, value, got[key])
				}
			}
		})
	}
}

func TestAdvice_Reconnect(t *testing.T) {
	testCases := []struct {
		name            string
		advice          Advice
		shouldRetry     bool
		shouldHandshake bool
		mustNot         bool
	}{
		{"retry advice", Advice{Reconnect: "retry"}, true, false, false},
		{"handshake advice", Advice{Reconnect: "handshake"}, false, true, false},
		{"none advice", Advice{Reconnect: "none"}, false, false, true},
		{"no advice", Advice{}, false, false, false},
	}

	for _, testCase := range testCases {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.advice.ShouldRetry(); got != tc.shouldRetry {
				t.Errorf("ShouldRetry(); want %v, got %v", tc.shouldRetry, got)
			}
			if got := tc.advice.ShouldHandshake(); got != tc.shouldHandshake {
				t.Errorf("ShouldHandshake(); want %v, got %v", tc.shouldHandshake, got)
			}
			if got := tc.advice.MustNotRetryOrHandshake(); got != tc.mustNot {
				t.Errorf("MustNotRetryOrHandshake(); want %v, got %v", tc.mustNot, got)
			}
		})
	}
}

func TestAdvice_AsDuration(t *testing.T) {
	a := Advice{Timeout: 30000, Interval: 2000}
	if want, got := 30*time.Second, a.TimeoutAsDuration(); want != got {
		t.Errorf("unexpected timeout duration; want %v, got %v", want, got)
	}
	if want, got := 2*time.Second, a.IntervalAsDuration(); want != got {
		t.Errorf("unexpected interval duration; want %v, got %v", want, got)
	}
}
