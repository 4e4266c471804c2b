package pool_test

import (
	"fmt"

	"github.com/ThalesGroup/hydrator-plugins/pkg/pool"
)

func Example() {
	record := pool.NewRecord("orders-source", 2)
	defer record.Release()

	record.SetData("id", int64(42))
	record.SetData("status", "shipped")

	status, _ := record.GetData("status")
	fmt.Println(record.Metadata.Source, record.Metadata.Split, status)

	// Output:
	// orders-source 2 shipped
}

func ExampleNew() {
	counters := pool.New(
		func() *[]int { s := make([]int, 0, 8); return &s },
		func(s *[]int) { *s = (*s)[:0] },
	)

	s := counters.Get()
	*s = append(*s, 1, 2, 3)
	fmt.Println(len(*s))
	counters.Put(s)

	// Output:
	// 3
}
