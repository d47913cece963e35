// Command siodrived mounts disk-image files onto the drive registry and
// reports what the SIO Channel would answer for them. It stands in for the
// transport-facing daemon; driving real UART/GPIO hardware is out of scope
// (spec.md §1) and left to the platform integration that embeds this core.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/whizzosoftware/sio2go/drive"
	"github.com/whizzosoftware/sio2go/geometry"
	"github.com/whizzosoftware/sio2go/image"
	"github.com/whizzosoftware/sio2go/proto"
)

func main() {
	app := &cli.App{
		Name:  "siodrived",
		Usage: "mount Atari disk images and inspect how the SIO core would answer them",
		Commands: []*cli.Command{
			{
				Name:      "mount",
				Usage:     "mount image files onto drive slots D1..D8 and print their recognized format",
				Action:    mountCommand,
				ArgsUsage: "D1_IMAGE [D2_IMAGE ...]",
			},
			{
				Name:      "format",
				Usage:     "create a blank ATR image of a standard Atari geometry",
				Action:    formatCommand,
				ArgsUsage: "OUTPUT_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "geometry", Value: "ss-sd-40", Usage: "predefined geometry slug, see geometry package"},
				},
			},
			{
				Name:  "geometries",
				Usage: "list predefined disk geometries",
				Action: func(*cli.Context) error {
					for _, slug := range []string{"ss-sd-35", "ss-sd-40", "ss-ed-35", "ss-ed-40", "ss-dd-35", "ss-dd-40"} {
						g, err := geometry.BySlug(slug)
						if err != nil {
							return err
						}
						fmt.Printf("%-10s %-40s %d bytes\n", g.Slug, g.Name, g.TotalSizeBytes)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func mountCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one image file is required", 1)
	}

	registry := drive.NewRegistry()
	for slot := 0; slot < c.NArg() && slot < drive.NumSlots; slot++ {
		path := c.Args().Get(slot)
		codec, err := openImageFile(path)
		if err != nil {
			return cli.Exit(fmt.Sprintf("%s: %s", path, err), 1)
		}
		if err := registry.MountSlot(slot, codec); err != nil {
			return cli.Exit(err.Error(), 1)
		}

		d := registry.Drive(proto.DeviceD1 + byte(slot))
		status := d.Status()
		fmt.Printf(
			"D%d: %s kind=%s sector_size=%d read_only=%t write_protected=%t\n",
			slot+1, path, codec.Kind(), status.SectorSize,
			status.StatusFrame.CommandStatus.WriteProtect,
			status.StatusFrame.HardwareStatus.WriteProtected,
		)
	}
	return nil
}

func openImageFile(path string) (image.Codec, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		f, err = os.Open(path)
		if err != nil {
			return nil, err
		}
	}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	codec, derr := image.Open(f, path, info.Size())
	if derr != nil {
		return nil, derr
	}
	return codec, nil
}

func formatCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("an output file path is required", 1)
	}
	g, err := geometry.BySlug(c.String("geometry"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if g.Density == 3 {
		return cli.Exit("ATR format only supports single- and enhanced-density targets (spec.md §4.8); pick an sd/ed geometry", 1)
	}
	if g.Tracks != 40 {
		return cli.Exit("ATR format only writes 40-track images; pick a 40-track geometry", 1)
	}

	path := c.Args().Get(0)
	f, err := os.Create(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer f.Close()

	density := proto.DensitySD
	if g.Density == proto.DensityED {
		density = proto.DensityED
	}

	// Seed a minimal ATR header so image.Open recognizes the freshly created
	// file, then let the codec's own Format rewrite it to the right size.
	if err := writeSeedATRHeader(f, uint32(g.SectorSize)); err != nil {
		return cli.Exit(err.Error(), 1)
	}

	codec, derr := image.Open(f, path, 16)
	if derr != nil {
		return cli.Exit(derr.Error(), 1)
	}
	if derr := codec.Format(density); derr != nil {
		return cli.Exit(derr.Error(), 1)
	}

	info, err := f.Stat()
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Printf("wrote %s (%s, %d bytes)\n", path, g.Name, info.Size())
	return nil
}

func writeSeedATRHeader(f *os.File, sectorSize uint32) error {
	header := make([]byte, 16)
	header[0], header[1] = 0x96, 0x02
	header[4] = byte(sectorSize)
	header[5] = byte(sectorSize >> 8)
	_, err := f.Write(header)
	return err
}
