package rpcfixture_test

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/tomasbasham/rpcfixture"
	"github.com/tomasbasham/rpcfixture/fixturetest"
)

func Example_integration() {
	cfg := rpcfixture.DefaultConfig()
	cfg.Watchdog = 0

	s := fixturetest.NewServer(cfg)
	defer s.Close()
	s.Start()

	client, err := s.Client()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v", err)
		return
	}

	p, err := client.Transform(context.Background(), "Greg Turnquist a,b,c,x,y,z")
	if err != nil {
		fmt.Fprintf(os.Stderr, "unexpected error: %v", err)
		return
	}

	fmt.Println(p.FirstName)
	fmt.Println(p.LastName)
	fmt.Println(p.Attributes)
	// Output:
	// Greg
	// Turnquist
	// [a b c x y z]
}

func ExampleFixture_Done() {
	cfg := rpcfixture.DefaultConfig()
	cfg.Watchdog = 100 * time.Millisecond

	s := fixturetest.NewServer(cfg)
	defer s.Close()
	s.Start()

	fmt.Println("waiting for fixture to stop...")
	<-s.Done()
	fmt.Println(s.Cause())
	// Output:
	// waiting for fixture to stop...
	// rpcfixture: watchdog expired
}

func ExampleParsePerson() {
	p, err := rpcfixture.ParsePerson("Jane Doe manager,engineer")
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("%s %s %q\n", p.FirstName, p.LastName, p.Attributes)

	_, err = rpcfixture.ParsePerson("Jane Doe")
	fmt.Println(err)
	// Output:
	// Jane Doe ["manager" "engineer"]
	// rpcfixture: parse "Jane Doe": segment 2: missing attributes
}
