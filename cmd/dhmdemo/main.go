// Command dhmdemo drives a Diffie-Hellman-Merkle handshake over a real
// TCP connection: one side plays Alice (the initiator), the other
// plays Bob (the responder), and each prints the SHA-224 of its
// derived shared secret so the two can be compared out of band.
package main

import (
	"fmt"
	"io"
	"net"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/ssviatko/dhmrsa/dhm"
	"github.com/ssviatko/dhmrsa/exception"
	"github.com/ssviatko/dhmrsa/glog"
	"github.com/ssviatko/dhmrsa/wire"
)

func main() {
	app := &cli.App{
		Name:  "dhmdemo",
		Usage: "exercise the DHM handshake engine over a TCP connection",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "v", Usage: "verbosity level", Value: 0},
			&cli.StringFlag{Name: "logdir", Usage: "write logs under this directory instead of stderr"},
			&cli.StringFlag{Name: "device", Usage: "randomness device path", Value: ""},
		},
		Before: func(c *cli.Context) error {
			glog.SetLogOutput(c.String("logdir"))
			glog.SetLogVerbose(c.Int("v"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "listen",
				Usage:     "act as Bob: accept one connection and respond to the handshake",
				ArgsUsage: "ADDR:PORT",
				Action: func(c *cli.Context) error {
					return runListen(c.Args().First(), c.String("device"))
				},
			},
			{
				Name:      "connect",
				Usage:     "act as Alice: dial a listener and initiate the handshake",
				ArgsUsage: "ADDR:PORT",
				Action: func(c *cli.Context) error {
					return runConnect(c.Args().First(), c.String("device"))
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, exception.Detail(err), err)
		os.Exit(1)
	}
}

func runListen(addr string, device string) error {
	if addr == "" {
		addr = ":4200"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()
	glog.Infoln("dhmdemo: listening on", addr)

	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := dhm.NewSession(device)
	if err != nil {
		return err
	}
	defer session.Close()

	var aliceBuf [dhm.AlicePacketSize]byte
	if _, err := io.ReadFull(conn, aliceBuf[:]); err != nil {
		return err
	}
	alicePacket, err := dhm.ParseAlicePacket(aliceBuf[:])
	if err != nil {
		return err
	}

	bobPacket, err := dhm.GetBob(session, alicePacket)
	if err != nil {
		return err
	}
	if _, err := conn.Write(bobPacket.Bytes()); err != nil {
		return err
	}

	secret := session.Secret()
	digest := wire.Sha224(secret[:])
	fmt.Printf("bob shared secret sha224: %x\n", digest)
	return nil
}

func runConnect(addr string, device string) error {
	if addr == "" {
		return exception.New("address required").Apply("usage: dhmdemo connect ADDR:PORT")
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	session, err := dhm.NewSession(device)
	if err != nil {
		return err
	}
	defer session.Close()

	alicePacket, alicePriv, err := dhm.GetAlice(session)
	if err != nil {
		return err
	}
	if _, err := conn.Write(alicePacket.Bytes()); err != nil {
		return err
	}

	var bobBuf [dhm.BobPacketSize]byte
	if _, err := io.ReadFull(conn, bobBuf[:]); err != nil {
		return err
	}
	bobPacket, err := dhm.ParseBobPacket(bobBuf[:])
	if err != nil {
		return err
	}

	if err := dhm.AliceSecret(session, alicePacket, bobPacket, alicePriv); err != nil {
		return err
	}

	secret := session.Secret()
	digest := wire.Sha224(secret[:])
	fmt.Printf("alice shared secret sha224: %x\n", digest)
	return nil
}
