package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/stoagroup/leasing_backend/config"
	"bitbucket.org/stoagroup/leasing_backend/models"
	"github.com/shopspring/decimal"
)

func TestEntityCRUD_ValidationRules(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "leasing_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	project, err := models.CreateProject(ctx, &models.NewProject{Name: "Aster Flats", City: "Nashville", State: "TN"})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	if _, err := models.CreateProject(ctx, &models.NewProject{Name: "Aster Flats"}); err == nil {
		t.Fatalf("expected duplicate project name to be rejected")
	} else if !strings.Contains(err.Error(), "duplicate name") {
		t.Fatalf("duplicate project name: unexpected error %q", err)
	}

	bank, err := models.CreateBank(ctx, &models.NewBank{Name: "First Federal"})
	if err != nil {
		t.Fatalf("CreateBank: %v", err)
	}

	loan, err := models.CreateLoan(ctx, &models.NewLoan{
		ProjectId: project.ID,
		BankId:    bank.ID,
		Name:      "Construction A",
		Principal: decimal.NewFromInt(24_000_000),
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}

	if _, err := models.CreateLoan(ctx, &models.NewLoan{
		ProjectId: 9999,
		BankId:    bank.ID,
		Name:      "Orphan",
		Principal: decimal.NewFromInt(1),
	}); err == nil || err.Error() != "project not found" {
		t.Fatalf("loan with unknown project: got %v", err)
	}

	if _, err := models.CreateLoan(ctx, &models.NewLoan{
		ProjectId: project.ID,
		BankId:    bank.ID,
		Name:      "Zero",
		Principal: decimal.Zero,
	}); err == nil || err.Error() != "principal must be positive" {
		t.Fatalf("loan with zero principal: got %v", err)
	}

	if _, err := models.DeleteProject(ctx, project.ID); err == nil || err.Error() != "project has loans" {
		t.Fatalf("deleting referenced project: got %v", err)
	}

	covenant, err := models.CreateCovenant(ctx, &models.NewCovenant{
		LoanId:    loan.ID,
		Name:      "Min Occupancy",
		Metric:    "occupancy",
		Threshold: decimal.RequireFromString("0.90"),
		Direction: ">=",
	})
	if err != nil {
		t.Fatalf("CreateCovenant: %v", err)
	}

	if _, err := models.CreateCovenant(ctx, &models.NewCovenant{
		LoanId:    loan.ID,
		Name:      "Bad Direction",
		Metric:    "occupancy",
		Threshold: decimal.NewFromInt(1),
		Direction: "!",
	}); err == nil || err.Error() != "direction must be >= or <=" {
		t.Fatalf("covenant with bad direction: got %v", err)
	}

	tested, err := models.RecordCovenantTest(ctx, covenant.ID, decimal.RequireFromString("0.9231"), time.Now().UTC())
	if err != nil {
		t.Fatalf("RecordCovenantTest: %v", err)
	}
	if !tested.LastValue.Valid || !tested.LastValue.Decimal.Equal(decimal.RequireFromString("0.9231")) {
		t.Fatalf("covenant LastValue not recorded: %+v", tested.LastValue)
	}
	if tested.LastTestedAt == nil {
		t.Fatalf("covenant LastTestedAt not recorded")
	}

	// item cache must not serve the stale project after an update
	if got, err := models.GetProject(ctx, project.ID); err != nil || got.Name != "Aster Flats" {
		t.Fatalf("GetProject before update: %v %+v", err, got)
	}
	if _, err := models.UpdateProject(ctx, project.ID, &models.NewProject{Name: "Aster Flats II", City: "Nashville", State: "TN"}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if got, err := models.GetProject(ctx, project.ID); err != nil || got.Name != "Aster Flats II" {
		t.Fatalf("GetProject after update: %v %+v", err, got)
	}

	projects, err := models.GetProjects(ctx)
	if err != nil {
		t.Fatalf("GetProjects: %v", err)
	}
	if len(projects) != 1 {
		t.Fatalf("GetProjects: want 1 project, got %d", len(projects))
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("leasing-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("leasing-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=leasing_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
