package fallback

import "testing"

func TestTryNext_AdvancesOnNotFoundAndServerErrors(t *testing.T) {
	cases := []struct {
		status int
		transport bool
		want   bool
	}{
		{status: 404, want: true},
		{status: 408, want: true},
		{status: 504, want: true},
		{status: 500, want: true},
		{status: 503, want: true},
		{status: 0, transport: true, want: true},
		{status: 401, want: false},
		{status: 403, want: false},
		{status: 400, want: false},
		{status: 200, want: false},
	}

	for _, tc := range cases {
		got := tryNext(tc.status, tc.transport)
		if got != tc.want {
			t.Errorf("tryNext(%d, %v) = %v, want %v", tc.status, tc.transport, got, tc.want)
		}
	}
}
