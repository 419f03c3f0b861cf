// quickfsck mounts a QuickFS image read-only and reports every invariant
// violation it finds. It never repairs an image; QuickFS has no journal or
// crash recovery, so a found inconsistency is something a human (or a
// from-scratch reformat) has to resolve.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/fs"
	"github.com/shawlson/quickfs/fsck"
)

func main() {
	app := cli.App{
		Name:      "quickfsck",
		Usage:     "check a QuickFS image for invariant violations",
		ArgsUsage: "IMAGE",
		Action:    checkImage,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func checkImage(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: quickfsck IMAGE", 1)
	}
	imagePath := c.Args().First()

	file, err := os.Open(imagePath)
	if err != nil {
		return cli.Exit(quickfs.ErrIO.Wrap(err), 1)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return cli.Exit(quickfs.ErrIO.Wrap(err), 1)
	}
	totalBlocks := int(info.Size() / quickfs.BlockSize)

	m, err := fs.Mount(file, totalBlocks)
	if err != nil {
		return cli.Exit(err, 1)
	}

	if err := fsck.Check(m); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.Exit("", 1)
	}

	fmt.Printf("%s: consistent\n", imagePath)
	return nil
}
