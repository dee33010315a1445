package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dvloznov/fop-tax-tracker/internal/pdftext"
	"github.com/dvloznov/fop-tax-tracker/internal/rowextract"
	"github.com/dvloznov/fop-tax-tracker/internal/statement"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("error: %v", err)
	}
}

// run dumps every stage of statement parsing for one local PDF: the
// detected bank, the extracted table rows and the parsed transactions.
func run() error {
	pdfPath := flag.String("file", "", "Path to a local statement PDF (required)")
	model := flag.String("model", os.Getenv("GEMINI_MODEL"), "Gemini model for row extraction; empty uses the text extractor")
	bank := flag.String("bank", "", "Force a bank layout instead of detecting it (monobank, privatbank, ukrsib)")
	masked := flag.Bool("mask", true, "Mask personal data in the printed text")
	flag.Parse()

	if *pdfPath == "" {
		return fmt.Errorf("-file is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pdfBytes, err := os.ReadFile(*pdfPath)
	if err != nil {
		return fmt.Errorf("failed to read PDF at %q: %w", *pdfPath, err)
	}

	pages, err := pdftext.Pages(pdfBytes)
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}

	show := func(s string) string {
		if *masked {
			return statement.Mask(s)
		}
		return s
	}

	fmt.Printf("=== Pages (%d) ===\n", len(pages))
	fmt.Println(show(pdftext.FirstPage(pages)))
	fmt.Printf("\nLooks like a statement: %t\n", statement.IsProbablyFinancial(pages))

	detected := statement.Detect(pdftext.FirstPage(pages)).Bank()
	if *bank != "" {
		detected = statement.ParseBank(*bank)
	}
	fmt.Printf("Bank:                   %s\n", detected)
	if detected == statement.BankUnknown {
		return nil
	}

	extractor, name, err := rowextract.New(ctx, *model)
	if err != nil {
		return fmt.Errorf("failed to create row extractor: %w", err)
	}

	rows, err := extractor.ExtractRows(ctx, detected, pages)
	if err != nil {
		return fmt.Errorf("failed to extract rows: %w", err)
	}

	fmt.Printf("\n=== Rows via %s (%d) ===\n", name, len(rows))
	for i, row := range rows {
		fmt.Printf("%3d | %s\n", i, show(strings.Join(row, " | ")))
	}

	parser, err := statement.New(detected)
	if err != nil {
		return err
	}
	res, err := parser.Parse(statement.Document{Pages: pages, Rows: rows})
	if err != nil {
		return fmt.Errorf("failed to parse statement: %w", err)
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(res.Transactions))
	for i, tx := range res.Transactions {
		fmt.Printf("%3d. %s %-6s %s %s  %s\n", i+1,
			tx.DateKey(), tx.Type,
			tx.AmountInOperationCurrency.StringFixed(2), tx.OperationCurrency,
			show(tx.Description))
	}

	income := statement.IncomeCandidates(res.Bank, res.Transactions)
	fmt.Printf("\nIncome candidates: %d\n", len(income))

	if len(res.Warnings) > 0 {
		fmt.Printf("\n=== Warnings (%d) ===\n", len(res.Warnings))
		for _, w := range res.Warnings {
			fmt.Println(show(w.Error()))
		}
	}
	return nil
}
