package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"costbreakdown/internal/common"
	"costbreakdown/internal/extract"
	"costbreakdown/internal/llm/gemini"
)

// doctor reports which parts of the pipeline this host can run: extraction
// binaries, the AI key and the breakdown template. Exits 2 when the template
// is missing since nothing can be produced without it.
func main() {
	_ = godotenv.Load()
	cfg := common.LoadConfig()

	extractor := extract.NewExtractor(extract.Config{
		Pdftotext:     cfg.Extract.Pdftotext,
		Tesseract:     cfg.Extract.Tesseract,
		TesseractLang: cfg.Extract.TesseractLang,
	}, nil)

	log.Println("extraction providers:")
	for _, c := range extractor.Capabilities() {
		status := "OK"
		if !c.Available {
			status = "MISSING"
		}
		if c.Detail != "" {
			log.Printf("- %s (%s): %s (%s)", c.Name, c.Kind, status, c.Detail)
		} else {
			log.Printf("- %s (%s): %s", c.Name, c.Kind, status)
		}
	}

	ai := gemini.NewClient(gemini.Config{
		APIKey: cfg.AI.APIKey,
		Model:  cfg.AI.Model,
	}, nil)
	if ai.Configured() {
		log.Printf("AI structuring: OK (model %s)", ai.Model())
	} else {
		log.Println("AI structuring: MISSING (set GEMINI_API_KEY; manual entry still works)")
	}

	if _, err := os.Stat(cfg.Paths.TemplatePath); err != nil {
		log.Printf("template: MISSING at %s", cfg.Paths.TemplatePath)
		os.Exit(2)
	}
	log.Printf("template: OK at %s", cfg.Paths.TemplatePath)
	log.Println("doctor: OK")
}
