// mkquickfs formats a raw block device image with QuickFS structures: a
// superblock, inode bitmap, data bitmap, and root inode.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/shawlson/quickfs"
	"github.com/shawlson/quickfs/format"
)

func main() {
	app := cli.App{
		Name:      "mkquickfs",
		Usage:     "initialize a raw image with QuickFS structures",
		ArgsUsage: "IMAGE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "preset",
				Usage: fmt.Sprintf("size IMAGE to a named preset before formatting it (%v)", format.PresetNames()),
			},
		},
		Action: formatImage,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%s: %s", quickfs.ErrInvalidImage.Error(), err)
	}
}

func formatImage(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: mkquickfs [--preset NAME] IMAGE", 1)
	}
	imagePath := c.Args().First()

	flags := os.O_RDWR
	var totalBytes int64

	if presetName := c.String("preset"); presetName != "" {
		preset, err := format.GetPreset(presetName)
		if err != nil {
			return cli.Exit(err, 1)
		}
		flags |= os.O_CREATE | os.O_TRUNC
		totalBytes = preset.TotalSizeBytes()
	}

	file, err := os.OpenFile(imagePath, flags, 0644)
	if err != nil {
		return cli.Exit(quickfs.ErrInvalidImage.Wrap(err), 1)
	}
	defer file.Close()

	if totalBytes > 0 {
		if err := file.Truncate(totalBytes); err != nil {
			return cli.Exit(quickfs.ErrInvalidImage.Wrap(err), 1)
		}
	}

	info, err := file.Stat()
	if err != nil {
		return cli.Exit(quickfs.ErrInvalidImage.Wrap(err), 1)
	}
	totalBlocks := int(info.Size() / quickfs.BlockSize)

	if err := format.Format(file, totalBlocks); err != nil {
		return cli.Exit(err, 1)
	}

	fmt.Printf("Formatted %s as a %d-block QuickFS image.\n", imagePath, totalBlocks)
	return nil
}
