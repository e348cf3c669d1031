// Command rsatool drives the RSA toolkit end to end: generate a
// keypair, encrypt or decrypt a file against it, or sign and verify a
// file's integrity.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ssviatko/dhmrsa/config"
	"github.com/ssviatko/dhmrsa/entropy"
	"github.com/ssviatko/dhmrsa/exception"
	"github.com/ssviatko/dhmrsa/glog"
	"github.com/ssviatko/dhmrsa/rsakit"
)

func currentUnixTime() int64 { return time.Now().Unix() }

var conf *config.Config

func main() {
	app := &cli.App{
		Name:  "rsatool",
		Usage: "generate RSA keys and encrypt, decrypt, sign, or verify files with them",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "v", Usage: "verbosity level", Value: 0},
			&cli.StringFlag{Name: "logdir", Usage: "write logs under this directory instead of stderr"},
			&cli.StringFlag{Name: "config", Usage: "path to dhmrsa.ini, if not in a default location"},
		},
		Before: func(c *cli.Context) error {
			glog.SetLogOutput(c.String("logdir"))
			glog.SetLogVerbose(c.Int("v"))
			var err error
			conf, err = config.Load(c.String("config"))
			return err
		},
		Commands: []*cli.Command{
			keygenCommand,
			encryptCommand,
			decryptCommand,
			signCommand,
			verifyCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, exception.Detail(err), err)
		os.Exit(1)
	}
}

var keygenCommand = &cli.Command{
	Name:  "keygen",
	Usage: "generate a private/public RSA keypair",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "bits", Usage: "key bit width"},
		&cli.IntFlag{Name: "workers", Usage: "racing worker count"},
		&cli.StringFlag{Name: "priv", Usage: "private keyfile output path", Value: "priv.d5r"},
		&cli.StringFlag{Name: "pub", Usage: "public keyfile output path", Value: "pub.d5r"},
		&cli.BoolFlag{Name: "pem", Usage: "wrap keyfiles in PEM framing"},
	},
	Action: func(c *cli.Context) error {
		bits := c.Int("bits")
		if bits == 0 {
			bits = conf.RSA.Bits
		}
		workers := c.Int("workers")
		if workers == 0 {
			workers = conf.RSA.Workers
		}

		device := conf.RSA.Device
		source, err := entropy.Open(device)
		if err != nil {
			return err
		}
		defer source.Close()

		glog.Infof("rsatool: generating a %d-bit key across %d workers", bits, workers)
		key, err := rsakit.GenerateKey(source, bits, workers)
		if err != nil {
			return err
		}

		privFile, err := os.Create(c.String("priv"))
		if err != nil {
			return err
		}
		defer privFile.Close()
		pubFile, err := os.Create(c.String("pub"))
		if err != nil {
			return err
		}
		defer pubFile.Close()

		if c.Bool("pem") {
			if err := rsakit.WritePrivateKeyFilePEM(privFile, key); err != nil {
				return err
			}
			return rsakit.WritePublicKeyFilePEM(pubFile, key.Public())
		}
		if err := rsakit.WritePrivateKeyFile(privFile, key); err != nil {
			return err
		}
		return rsakit.WritePublicKeyFile(pubFile, key.Public())
	},
}

var encryptCommand = &cli.Command{
	Name:      "encrypt",
	Usage:     "encrypt a file against a public keyfile",
	ArgsUsage: "INFILE OUTFILE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "pub", Usage: "public keyfile path", Required: true},
		&cli.BoolFlag{Name: "pem", Usage: "the keyfile is PEM-wrapped"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return exception.New("encrypt requires INFILE and OUTFILE arguments")
		}
		pub, err := loadPublicKey(c.String("pub"), c.Bool("pem"))
		if err != nil {
			return err
		}

		in, err := os.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(c.Args().Get(1))
		if err != nil {
			return err
		}
		defer out.Close()

		source, err := entropy.Open(conf.RSA.Device)
		if err != nil {
			return err
		}
		defer source.Close()

		geo := rsakit.GeoLocation{Latitude: conf.Location.Latitude, Longitude: conf.Location.Longitude}
		return rsakit.Encrypt(source, pub, in, out, geo, currentUnixTime())
	},
}

var decryptCommand = &cli.Command{
	Name:      "decrypt",
	Usage:     "decrypt a file against a private keyfile",
	ArgsUsage: "INFILE OUTFILE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "priv", Usage: "private keyfile path", Required: true},
		&cli.BoolFlag{Name: "pem", Usage: "the keyfile is PEM-wrapped"},
		&cli.IntFlag{Name: "workers", Usage: "decrypt worker pool size"},
		&cli.BoolFlag{Name: "crt", Usage: "use the CRT-accelerated path", Value: true},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return exception.New("decrypt requires INFILE and OUTFILE arguments")
		}
		priv, err := loadPrivateKey(c.String("priv"), c.Bool("pem"))
		if err != nil {
			return err
		}

		in, err := os.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(c.Args().Get(1))
		if err != nil {
			return err
		}
		defer out.Close()

		workers := c.Int("workers")
		if workers == 0 {
			workers = conf.RSA.Workers
		}

		header, err := rsakit.Decrypt(priv, c.Bool("crt"), workers, in, out)
		if err != nil {
			return err
		}
		glog.Infof("rsatool: decrypted %d bytes, signed over by %v", header.Size, header.Time)
		return nil
	},
}

var signCommand = &cli.Command{
	Name:      "sign",
	Usage:     "sign a file against a private keyfile",
	ArgsUsage: "INFILE SIGFILE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "priv", Usage: "private keyfile path", Required: true},
		&cli.BoolFlag{Name: "pem", Usage: "the keyfile is PEM-wrapped"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return exception.New("sign requires INFILE and SIGFILE arguments")
		}
		priv, err := loadPrivateKey(c.String("priv"), c.Bool("pem"))
		if err != nil {
			return err
		}

		in, err := os.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer in.Close()

		source, err := entropy.Open(conf.RSA.Device)
		if err != nil {
			return err
		}
		defer source.Close()

		geo := rsakit.GeoLocation{Latitude: conf.Location.Latitude, Longitude: conf.Location.Longitude}
		sig, err := rsakit.Sign(priv, source, in, geo, currentUnixTime())
		if err != nil {
			return err
		}
		return os.WriteFile(c.Args().Get(1), sig, 0644)
	},
}

var verifyCommand = &cli.Command{
	Name:      "verify",
	Usage:     "verify a file's signature against a public keyfile",
	ArgsUsage: "INFILE SIGFILE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "pub", Usage: "public keyfile path", Required: true},
		&cli.BoolFlag{Name: "pem", Usage: "the keyfile is PEM-wrapped"},
	},
	Action: func(c *cli.Context) error {
		if c.Args().Len() != 2 {
			return exception.New("verify requires INFILE and SIGFILE arguments")
		}
		pub, err := loadPublicKey(c.String("pub"), c.Bool("pem"))
		if err != nil {
			return err
		}

		in, err := os.Open(c.Args().Get(0))
		if err != nil {
			return err
		}
		defer in.Close()

		sig, err := os.ReadFile(c.Args().Get(1))
		if err != nil {
			return err
		}

		ok, geo, signedAt, err := rsakit.Verify(pub, in, sig)
		if err != nil {
			fmt.Fprintln(os.Stderr, "verification failed:", err)
			os.Exit(1)
		}
		if ok {
			fmt.Printf("signature OK, signed at %v from (%v, %v)\n", signedAt, geo.Latitude, geo.Longitude)
		}
		return nil
	},
}

func loadPrivateKey(path string, pem bool) (*rsakit.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if pem {
		return rsakit.ReadPrivateKeyFilePEM(f)
	}
	return rsakit.ReadPrivateKeyFile(f)
}

func loadPublicKey(path string, pem bool) (*rsakit.PublicKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if pem {
		return rsakit.ReadPublicKeyFilePEM(f)
	}
	return rsakit.ReadPublicKeyFile(f)
}
