package bayeux

import "testing"

func TestSessionStateRepresentation(t *testing.T) {
	testCases := []struct {
		name  string
		state sessionState
		want  StateRepresentation
	}{
		{
			"fresh client",
			sessionState{},
			StateIdle,
		},
		{
			"started before handshake completes",
			sessionState{started: true, everStarted: true},
			StateHandshaking,
		},
		{
			"started and handshaken",
			sessionState{started: true, everStarted: true, handshaken: true, connected: true},
			StateConnected,
		},
		{
			"stopped with disconnect outstanding",
			sessionState{connected: true, everStarted: true},
			StateDisconnecting,
		},
		{
			"stopped after disconnect resolved",
			sessionState{everStarted: true},
			StateStopped,
		},
		{
			"destroyed wins over everything",
			sessionState{started: true, everStarted: true, handshaken: true, destroyed: true},
			StateDestroyed,
		},
	}

	for _, testCase := range testCases {
		tc := testCase
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.state.representation(); got != tc.want {
				t.Errorf("unexpected representation; want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClientState_GetClientID(t *testing.T) {
	want := "fakeClientID"
	state := clientState{clientID: want}
	got := state.GetClientID()
	if want != got {
		t.Errorf("error retrieving client ID; want %s got %s", want, got)
	}
}

func TestClientState_SetClientID(t *testing.T) {
	want := "fakeClientID"
	state := clientState{}
	state.SetClientID(want)
	if got := state.clientID; want != got {
		t.Errorf("error retrieving client ID; want %s got %s", want, got)
	}
}
