package errors_test

import (
	"fmt"
	"io"

	"github.com/ThalesGroup/hydrator-plugins/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeConnection, "failed to check table existence").
		WithDetail("driver", "source.jdbc.postgres").
		WithDetail("table", "orders")

	fmt.Println(err.Error())

	// Output:
	// connection: failed to check table existence
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.EOF, errors.ErrorTypeQuery, "failed to read bounding query").
		WithDetail("column", "id")

	if errors.IsType(err, errors.ErrorTypeQuery) {
		fmt.Println("query error")
	}
	fmt.Println(err)

	// Output:
	// query error
	// query: failed to read bounding query: EOF
}

// ExampleHasType shows how a conflict is detected below a wrapping layer.
func ExampleHasType() {
	conflict := errors.Newf(errors.ErrorTypeConflict, "partition %q already exists", "out/2015-01-01")
	err := errors.Wrap(conflict, errors.ErrorTypeFile, "sink prepare failed")

	fmt.Println(errors.IsType(err, errors.ErrorTypeConflict))
	fmt.Println(errors.HasType(err, errors.ErrorTypeConflict))

	// Output:
	// false
	// true
}
