// Command cityrag-admin operates on the document store directly, acting as the system principal.
package main

import (
	"log"
	"os"
)

func main() {
	if err := newCLI(os.Stdout, os.Stdin).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
