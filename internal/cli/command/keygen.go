package command

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/gedis-go/pkg/crypto/identity"
)

// KeygenCommand returns the keygen command.
func KeygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate an identity for the AUTH handshake",
		Description: `Writes a new identity (peer id and private seed) to --out and, with
--directory, adds its public keys to a directory file. Servers and clients
need each other's public keys in their directory files.`,
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Peer id of the new identity",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "out",
				Usage:    "Identity file to write",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "directory",
				Usage: "Directory file to add the public keys to (created if missing)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing identity file",
			},
		},
		Action: keygenAction,
	}
}

func keygenAction(c *cli.Context) error {
	e := getEnv(c)
	out := c.String("out")

	if _, err := os.Stat(out); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", out)
	}

	id, err := identity.Generate(c.Int64("id"))
	if err != nil {
		return err
	}
	if err := id.Save(out); err != nil {
		return err
	}

	if path := c.String("directory"); path != "" {
		if err := addToDirectory(path, id); err != nil {
			return err
		}
	}

	pub := id.Public()
	return e.print(map[string]any{
		"id":           id.ID,
		"file":         out,
		"sign_key":     hex.EncodeToString(pub.SignKey),
		"exchange_key": hex.EncodeToString(pub.ExchangeKey),
	})
}

func addToDirectory(path string, id *identity.Identity) error {
	dir, err := identity.LoadDirectory(path)
	if errors.Is(err, os.ErrNotExist) {
		dir, err = identity.NewStaticDirectory(), nil
	}
	if err != nil {
		return err
	}
	dir.AddIdentity(id)
	return dir.SaveDirectory(path)
}
