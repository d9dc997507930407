package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gookit/color"

	"chosenoffset.com/fieldrender/internal/placeholders"
)

func main() {
	dir := flag.String("out", "assets", "directory to write the placeholder world into")
	flag.Parse()

	color.Bold.Println("fieldrender Placeholder World Generator")
	fmt.Println("=======================================")
	fmt.Println()

	written, err := placeholders.Generate().Save(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.Red.Sprintf("Error: %v", err))
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Printf("  %s %s\n", color.Green.Sprint("wrote"), path)
	}

	fmt.Println()
	color.Cyan.Printf("Done! %d files are ready in %s.\n", len(written), *dir)
	fmt.Println("Run fieldrender to walk around the placeholder world.")
}
