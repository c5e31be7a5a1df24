package rpcfixture

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestParsePerson(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Person
	}{
		{
			name:  "several attributes",
			input: "Jane Doe manager,engineer",
			want:  Person{FirstName: "Jane", LastName: "Doe", Attributes: []string{"manager", "engineer"}},
		},
		{
			name:  "single attribute",
			input: "Jane Doe single",
			want:  Person{FirstName: "Jane", LastName: "Doe", Attributes: []string{"single"}},
		},
		{
			name:  "extra segments ignored",
			input: "Greg Turnquist a,b,c,x,y,z trailing words",
			want:  Person{FirstName: "Greg", LastName: "Turnquist", Attributes: []string{"a", "b", "c", "x", "y", "z"}},
		},
		{
			name:  "runs of whitespace",
			input: "  Jane\tDoe \n a  ",
			want:  Person{FirstName: "Jane", LastName: "Doe", Attributes: []string{"a"}},
		},
		{
			name:  "trailing empty attributes dropped",
			input: "Jane Doe a,b,,",
			want:  Person{FirstName: "Jane", LastName: "Doe", Attributes: []string{"a", "b"}},
		},
		{
			name:  "interior empty attributes kept",
			input: "Jane Doe a,,b",
			want:  Person{FirstName: "Jane", LastName: "Doe", Attributes: []string{"a", "", "b"}},
		},
		{
			name:  "only commas",
			input: "Jane Doe ,",
			want:  Person{FirstName: "Jane", LastName: "Doe", Attributes: []string{}},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePerson(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParsePerson_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		segment int
		want    error
	}{
		{input: "", segment: 0, want: ErrMissingFirstName},
		{input: "   ", segment: 0, want: ErrMissingFirstName},
		{input: "Jane", segment: 1, want: ErrMissingLastName},
		{input: "Jane Doe", segment: 2, want: ErrMissingAttributes},
		{input: "Jane Doe ", segment: 2, want: ErrMissingAttributes},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParsePerson(tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error mismatch:\n  got:  %v\n  want: %v", err, tt.want)
			}

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if perr.Segment != tt.segment {
				t.Errorf("segment mismatch:\n  got:  %d\n  want: %d", perr.Segment, tt.segment)
			}
			if perr.Input != tt.input {
				t.Errorf("input mismatch:\n  got:  %q\n  want: %q", perr.Input, tt.input)
			}
			if diff := cmp.Diff(Person{}, got); diff != "" {
				t.Errorf("expected zero person (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPerson_String(t *testing.T) {
	t.Parallel()

	const input = "Greg Turnquist a,b,c"

	p, err := ParsePerson(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.String(); got != input {
		t.Errorf("mismatch:\n  got:  %q\n  want: %q", got, input)
	}
}

func TestParseError_GRPCStatus(t *testing.T) {
	t.Parallel()

	_, err := ParsePerson("Jane")

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected a status error, got %T", err)
	}
	if got, want := st.Code(), codes.InvalidArgument; got != want {
		t.Errorf("code mismatch:\n  got:  %v\n  want: %v", got, want)
	}

	var violations []*errdetails.BadRequest_FieldViolation
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok {
			violations = append(violations, br.GetFieldViolations()...)
		}
	}
	if len(violations) != 1 {
		t.Fatalf("expected one field violation, got %d", len(violations))
	}
	if got, want := violations[0].GetField(), fieldLastName; got != want {
		t.Errorf("field mismatch:\n  got:  %q\n  want: %q", got, want)
	}

	rebuilt := parseErrorFromStatus("Jane", st)
	if rebuilt == nil {
		t.Fatal("expected status to rebuild a parse error")
	}
	if !errors.Is(rebuilt, ErrMissingLastName) {
		t.Errorf("expected ErrMissingLastName, got: %v", rebuilt)
	}
	if rebuilt.Error() != err.Error() {
		t.Errorf("message mismatch:\n  got:  %q\n  want: %q", rebuilt.Error(), err.Error())
	}
}

func TestParseErrorFromStatus_Unrelated(t *testing.T) {
	t.Parallel()

	for _, st := range []*status.Status{
		status.New(codes.Unavailable, "gone"),
		status.New(codes.InvalidArgument, "no details"),
	} {
		if perr := parseErrorFromStatus("x", st); perr != nil {
			t.Errorf("%v: expected nil, got %v", st.Code(), perr)
		}
	}
}
