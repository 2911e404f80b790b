package cmd

import (
	"context"
	"fmt"
)

// Diff compares vault contents with local files
func Diff(ctx context.Context, names []string) {
	v := OpenVault()
	defer v.Close()

	diffs, err := v.Diff(ctx, names)
	if err != nil {
		HandleError(err)
	}

	changed := 0
	for _, d := range diffs {
		switch {
		case d.Missing:
			fmt.Printf("%s: not present locally\n", d.Name)
			changed++
		case d.Patch != "":
			fmt.Print(d.Patch)
			changed++
		}
	}
	if changed == 0 {
		fmt.Println("No differences")
	}
}
