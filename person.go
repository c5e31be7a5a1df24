package rpcfixture

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Parse failures. Each names the segment that was absent from the input.
var (
	ErrMissingFirstName  = errors.New("missing first name")
	ErrMissingLastName   = errors.New("missing last name")
	ErrMissingAttributes = errors.New("missing attributes")
)

// Segment indexes of the input format "<first> <last> <attr,attr,...>".
const (
	segmentFirstName = iota
	segmentLastName
	segmentAttributes
)

// segmentFields maps a segment index to the field it populates. The names
// match the keys used on the wire.
var segmentFields = [...]string{
	segmentFirstName:  fieldFirstName,
	segmentLastName:   fieldLastName,
	segmentAttributes: fieldAttributes,
}

var segmentErrs = [...]error{
	segmentFirstName:  ErrMissingFirstName,
	segmentLastName:   ErrMissingLastName,
	segmentAttributes: ErrMissingAttributes,
}

// Person is the record returned by a transform.
type Person struct {
	FirstName  string
	LastName   string
	Attributes []string
}

// String renders p in the input format accepted by [ParsePerson].
func (p Person) String() string {
	return p.FirstName + " " + p.LastName + " " + strings.Join(p.Attributes, ",")
}

// ParseError reports input that does not have the shape
// "<first> <last> <attr,attr,...>".
type ParseError struct {
	Input   string
	Segment int
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("rpcfixture: parse %q: segment %d: %v", e.Input, e.Segment, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// GRPCStatus reports the error as InvalidArgument with a BadRequest detail
// naming the missing field, so it crosses the transport intact.
func (e *ParseError) GRPCStatus() *status.Status {
	st := status.New(codes.InvalidArgument, e.Error())

	field := ""
	if e.Segment >= 0 && e.Segment < len(segmentFields) {
		field = segmentFields[e.Segment]
	}

	detailed, err := st.WithDetails(&errdetails.BadRequest{
		FieldViolations: []*errdetails.BadRequest_FieldViolation{{
			Field:       field,
			Description: e.Err.Error(),
		}},
	})
	if err != nil {
		return st
	}
	return detailed
}

// ParsePerson splits input on whitespace into first name, last name and a
// comma separated attribute list. Segments after the third are ignored.
// Trailing empty attributes are dropped, so "a,b," yields [a b] and ","
// yields an empty list.
func ParsePerson(input string) (Person, error) {
	segments := strings.Fields(input)
	if n := len(segments); n <= segmentAttributes {
		return Person{}, &ParseError{Input: input, Segment: n, Err: segmentErrs[n]}
	}

	return Person{
		FirstName:  segments[segmentFirstName],
		LastName:   segments[segmentLastName],
		Attributes: splitAttributes(segments[segmentAttributes]),
	}, nil
}

func splitAttributes(s string) []string {
	attrs := strings.Split(s, ",")
	for len(attrs) > 0 && attrs[len(attrs)-1] == "" {
		attrs = attrs[:len(attrs)-1]
	}
	return attrs
}

// parseErrorFromStatus rebuilds a *ParseError from a status produced by
// [ParseError.GRPCStatus]. It returns nil if st carries no field violation
// for a known segment.
func parseErrorFromStatus(input string, st *status.Status) *ParseError {
	if st.Code() != codes.InvalidArgument {
		return nil
	}

	for _, d := range st.Details() {
		br, ok := d.(*errdetails.BadRequest)
		if !ok {
			continue
		}
		for _, v := range br.GetFieldViolations() {
			for seg, field := range segmentFields {
				if v.GetField() == field {
					return &ParseError{Input: input, Segment: seg, Err: segmentErrs[seg]}
				}
			}
		}
	}
	return nil
}
