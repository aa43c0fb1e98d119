// Утилита администрирования сервиса ATS: добавление пользователей бригад и бесед, формирование тестового PDF.
//
// Пример запуска:
//
//	atsadmin add-user -login jperez -name "Juan Perez" -crew "BRIGADA 7"
//	atsadmin add-talk -item 1 -topic "Trabajos en altura" -presenter "Ing. Rojas"
//	atsadmin render-sample -out sample.pdf
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/cicsa-sst/ats/internal/ats/config"
	"github.com/cicsa-sst/ats/internal/ats/dao"
	"github.com/cicsa-sst/ats/internal/ats/export"
	"github.com/cicsa-sst/ats/internal/ats/gormlogger"
	"github.com/cicsa-sst/ats/internal/ats/types"
)

type command struct {
	usage string
	run   func(args []string) error
}

var commands = map[string]command{
	"add-user":      {"add brigade user", addUser},
	"add-talk":      {"add or replace scheduled talk", addTalk},
	"render-sample": {"render sample ATS report to file", renderSample},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		printUsage()
		os.Exit(2)
	}

	if err := cmd.run(os.Args[2:]); err != nil {
		slog.Error("Command failed", "cmd", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: atsadmin <command> [flags]")
	for _, name := range []string{"add-user", "add-talk", "render-sample"} {
		fmt.Fprintf(os.Stderr, "  %-14s %s\n", name, commands[name].usage)
	}
}

func openDB() (*gorm.DB, error) {
	cfg, err := config.ReadConfig()
	if err != nil {
		return nil, err
	}
	db, err := dao.OpenDB(cfg.DatabaseDSN, gormlogger.NewGormLogger(slog.Default(), time.Second*4, true))
	if err != nil {
		return nil, err
	}
	return db, db.AutoMigrate(dao.AllModels()...)
}

func addUser(args []string) error {
	fs := flag.NewFlagSet("add-user", flag.ExitOnError)
	login := fs.String("login", "", "User login")
	name := fs.String("name", "", "Full name")
	role := fs.String("role", "Técnico", "Role")
	crew := fs.String("crew", "", "Crew")
	zone := fs.String("zone", "", "Zone")
	contractor := fs.String("contractor", "", "Contractor company")
	dni := fs.String("dni", "", "National ID")
	pass := fs.String("password", "", "Password, generated if empty")
	fs.Parse(args)

	db, err := openDB()
	if err != nil {
		return err
	}

	generated := *pass == ""
	if generated {
		*pass = dao.GenPassword()
	}

	user := dao.BrigadeUser{
		Login:      *login,
		Name:       *name,
		Role:       *role,
		Crew:       *crew,
		Zone:       *zone,
		Contractor: *contractor,
		NationalID: *dni,
		Password:   dao.GenPasswordHash(*pass),
		Active:     true,
	}
	if err := dao.CreateBrigadeUser(db, &user); err != nil {
		return err
	}

	slog.Info("User created", "login", user.Login, "id", user.ID)
	if generated {
		fmt.Println("Password:", *pass)
	}
	return nil
}

func addTalk(args []string) error {
	fs := flag.NewFlagSet("add-talk", flag.ExitOnError)
	item := fs.Int("item", 0, "Talk number")
	topic := fs.String("topic", "", "Topic")
	presenter := fs.String("presenter", "", "Presenter")
	fs.Parse(args)

	if *item <= 0 || *topic == "" {
		return fmt.Errorf("item and topic are required")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	if err := dao.CreateScheduledTalk(db, &dao.ScheduledTalk{Item: *item, Topic: *topic, Presenter: *presenter}); err != nil {
		return err
	}
	slog.Info("Talk saved", "item", *item)
	return nil
}

func renderSample(args []string) error {
	fs := flag.NewFlagSet("render-sample", flag.ExitOnError)
	out := fs.String("out", "", "Output file, default generated ATS name")
	company := fs.String("company", "CICSA PERU S.A.C.", "Company name")
	fs.Parse(args)

	doc, err := export.NewRenderer(export.LayoutOptions{Company: *company}, nil, nil).Render(sampleSubmission())
	if err != nil {
		return err
	}

	path := *out
	if path == "" {
		path = doc.Name
	}
	if err := os.WriteFile(path, doc.Data, 0o644); err != nil {
		return err
	}
	slog.Info("Sample report written", "path", path, "size", len(doc.Data))
	return nil
}

func sampleSubmission() types.Submission {
	return types.Submission{
		Date:              time.Now().Format(types.DateLayout),
		StartTime:         "08:00",
		EndTime:           "09:30",
		Activity:          "Mantenimiento de red de fibra óptica",
		Location:          "Av. Arequipa 123, Lima",
		Recommendations:   "Señalizar la zona de trabajo.\nVerificar EPP antes de iniciar.",
		Supervisor:        "JUAN PEREZ",
		BriefingTopic:     "Trabajos en altura",
		BriefingPresenter: "Ing. Rojas",
		Hazards:           []string{"Caída a distinto nivel", "Riesgo eléctrico"},
		Participants: []types.Participant{
			{ItemNumber: 1, Login: "jperez", Name: "Juan Perez", Role: "Técnico", NationalID: "12345678", Crew: "BRIGADA 7", EquipmentTags: []string{"Casco", "Chaleco reflectivo", "Guantes"}, Observation: "Sin novedad"},
			{ItemNumber: 2, Login: "aramos", Name: "Ana Ramos", Role: "Líder", NationalID: "87654321", Crew: "BRIGADA 7", EquipmentTags: []string{"Casco", "Arnés"}},
		},
		Crew:            "BRIGADA 7",
		Zone:            "Lima Norte",
		Contractor:      "CONTRATA SAC",
		RegisteringUser: "jperez",
		Area:            "MRD F.O. LIMA METROP.",
	}
}
