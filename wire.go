package rpcfixture

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Keys of a Person encoded as a google.protobuf.Struct.
const (
	fieldFirstName  = "firstName"
	fieldLastName   = "lastName"
	fieldAttributes = "attributes"
)

// ErrMalformedPerson is returned when a Struct does not decode to a Person.
var ErrMalformedPerson = errors.New("rpcfixture: malformed person")

// Struct encodes p as a google.protobuf.Struct with the keys firstName,
// lastName and attributes.
func (p Person) Struct() *structpb.Struct {
	attrs := make([]*structpb.Value, len(p.Attributes))
	for i, a := range p.Attributes {
		attrs[i] = structpb.NewStringValue(a)
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			fieldFirstName:  structpb.NewStringValue(p.FirstName),
			fieldLastName:   structpb.NewStringValue(p.LastName),
			fieldAttributes: structpb.NewListValue(&structpb.ListValue{Values: attrs}),
		},
	}
}

// PersonFromStruct decodes a Person produced by [Person.Struct].
func PersonFromStruct(s *structpb.Struct) (Person, error) {
	fields := s.GetFields()

	first, err := stringField(fields, fieldFirstName)
	if err != nil {
		return Person{}, err
	}
	last, err := stringField(fields, fieldLastName)
	if err != nil {
		return Person{}, err
	}

	v, ok := fields[fieldAttributes]
	if !ok {
		return Person{}, fmt.Errorf("%w: no %s", ErrMalformedPerson, fieldAttributes)
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return Person{}, fmt.Errorf("%w: %s is not a list", ErrMalformedPerson, fieldAttributes)
	}

	values := list.ListValue.GetValues()
	attrs := make([]string, len(values))
	for i, av := range values {
		sv, ok := av.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return Person{}, fmt.Errorf("%w: %s[%d] is not a string", ErrMalformedPerson, fieldAttributes, i)
		}
		attrs[i] = sv.StringValue
	}

	return Person{FirstName: first, LastName: last, Attributes: attrs}, nil
}

func stringField(fields map[string]*structpb.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: no %s", ErrMalformedPerson, key)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedPerson, key)
	}
	return sv.StringValue, nil
}
