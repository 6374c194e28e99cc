package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
)

func setupIntegrationDB(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "leatherworks_test")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("STAGE_REDIS_LOCK", "")

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	if _, err := models.EnsureDefaultCategories(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultCategories: %v", err)
	}

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	return utils.SetUserNameInContext(ctx, "Test")
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func realMaterial(t *testing.T, ctx context.Context, category, name, qty string) *models.Material {
	t.Helper()
	categories, err := models.ListMaterialCategories(ctx)
	if err != nil {
		t.Fatalf("ListMaterialCategories: %v", err)
	}
	categoryId := 0
	for _, c := range categories {
		if c.Name == category {
			categoryId = c.ID
		}
	}
	m, err := models.CreateMaterial(ctx, &models.NewMaterial{Name: name, CategoryId: categoryId, Unit: models.MaterialUnitPiece, UnitPrice: d("100")})
	if err != nil {
		t.Fatalf("CreateMaterial %s: %v", name, err)
	}
	if _, err := models.RecordMaterialIntake(ctx, &models.NewMaterialIntake{MaterialId: m.ID, Quantity: d(qty)}); err != nil {
		t.Fatalf("RecordMaterialIntake %s: %v", name, err)
	}
	return m
}

func worker(t *testing.T, ctx context.Context, roleName, name string) *models.Worker {
	t.Helper()
	role, err := models.CreateWorkerRole(ctx, &models.NewWorkerRole{Name: roleName})
	if err != nil {
		t.Fatalf("CreateWorkerRole %s: %v", roleName, err)
	}
	w, err := models.CreateWorker(ctx, &models.NewWorker{FullName: name, RoleId: role.ID})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}
	return w
}

func balance(t *testing.T, ctx context.Context, pool models.StockPool) decimal.Decimal {
	t.Helper()
	b, err := models.GetBalance(ctx, pool)
	if err != nil {
		t.Fatalf("GetBalance %s: %v", pool, err)
	}
	return b
}

func countRows(t *testing.T, model any, where string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := config.GetDB().Model(model).Where(where, args...).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("leatherworks-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=leatherworks_test",
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
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

// startRedisContainer returns host:port of a throw-away redis.
func startRedisContainer(t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf("leatherworks-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun("run", "-d", "--name", name, "-p", "127.0.0.1:0:6379", "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	t.Cleanup(func() { _ = dockerRmForce(name) })
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if out, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil && strings.Contains(out, "PONG") {
			return "127.0.0.1:" + port
		}
		time.Sleep(300 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
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
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
