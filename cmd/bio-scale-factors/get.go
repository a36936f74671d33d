package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CChahrour/SeqNado/factorstore"
	"github.com/CChahrour/SeqNado/normalization"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

type getFlags struct {
	store    string
	method   string
	group    bool
	negative bool
}

func newCmdGet() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "get",
		Short:    "Print the scale factor of a sample or group",
		ArgsName: "subject",
	}
	var flags getFlags
	cmd.Flags.StringVar(&flags.store, "store", "", "Factor store: a .tsv file written by compute, or an SQLite database")
	cmd.Flags.StringVar(&flags.method, "method", "", "Normalization method")
	cmd.Flags.BoolVar(&flags.group, "group", false, "The subject is a group")
	cmd.Flags.BoolVar(&flags.negative, "negative", false, "Negate the factor, for reverse-strand tracks")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return env.UsageErrorf("get takes one subject, but got %v", argv)
		}
		if flags.store == "" || flags.method == "" {
			return env.UsageErrorf("-store and -method must be set")
		}
		return get(vcontext.Background(), flags, argv[0], env.Stdout)
	})
	return cmd
}

func get(ctx context.Context, flags getFlags, subject string, stdout io.Writer) error {
	m, err := normalization.ParseMethod(flags.method)
	if err != nil {
		return err
	}
	key := factorstore.Key{Subject: subject, Kind: factorstore.Sample, Method: m}
	if flags.group {
		key.Kind = factorstore.Group
	}
	var store factorstore.Store
	if strings.HasSuffix(flags.store, ".tsv") {
		if store, err = factorstore.LoadTSV(ctx, flags.store); err != nil {
			return err
		}
	} else {
		db, err := factorstore.OpenSQLite(ctx, flags.store)
		if err != nil {
			return err
		}
		defer db.Close() // nolint: errcheck
		store = db
	}
	f, err := factorstore.Factor(ctx, store, key, flags.negative)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, strconv.FormatFloat(f, 'g', -1, 64))
	return err
}
