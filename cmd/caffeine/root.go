package main

import (
	"context"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "caffeine",
	Short: "Symbolic execution of LLVM bitcode",
	Long:  "caffeine is a path-forking symbolic execution engine for LLVM bitcode",
}

func execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
