// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command scenerypack builds and inspects scenery resource files.
//
// Usage:
//
//	scenerypack pack -o textures.res [-srgb] [-mips] image...
//	scenerypack list textures.res
//
// PNG, JPEG, GIF, BMP, TIFF and WebP images are imported as RGBA 2D
// textures.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
)

func main() {
	log.SetFlags(0)
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "pack":
		err = runPack(os.Args[2:])
	case "list":
		err = runList(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("scenerypack: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: scenerypack pack -o file [-srgb] [-mips] image...")
	fmt.Fprintln(os.Stderr, "       scenerypack list file")
	os.Exit(2)
}

func runPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	var (
		output = fs.String("o", "resources.res", "output resource file")
		srgb   = fs.Bool("srgb", false, "store textures as sRGB")
		mips   = fs.Bool("mips", false, "generate mip chains on upload")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("no images given")
	}
	n, err := pack(*output, fs.Args(), importOptions{SRGB: *srgb, GenerateMips: *mips})
	if err != nil {
		return err
	}
	log.Printf("packed %d resources into %s", n, *output)
	return nil
}

func runList(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("list takes one resource file")
	}
	return list(os.Stdout, args[0])
}
