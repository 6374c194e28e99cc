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

	"bitbucket.org/mmdatafocus/leatherworks/config"
	"bitbucket.org/mmdatafocus/leatherworks/models"
	"bitbucket.org/mmdatafocus/leatherworks/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// setupIntegrationDB starts a throw-away MySQL, points config at it and migrates.
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

	config.ConnectDatabaseWithRetry()
	models.MigrateTable()
	if _, err := models.EnsureDefaultCategories(context.Background()); err != nil {
		t.Fatalf("EnsureDefaultCategories: %v", err)
	}

	ctx := utils.SetUserIdInContext(context.Background(), 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")
	return ctx
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func categoryId(t *testing.T, ctx context.Context, name string) int {
	t.Helper()
	categories, err := models.ListMaterialCategories(ctx)
	if err != nil {
		t.Fatalf("ListMaterialCategories: %v", err)
	}
	for _, c := range categories {
		if c.Name == name {
			return c.ID
		}
	}
	t.Fatalf("category %q not seeded", name)
	return 0
}

// realMaterial creates a real material in category and books qty of intake.
func realMaterial(t *testing.T, ctx context.Context, category, name string, qty string) *models.Material {
	t.Helper()
	m, err := models.CreateMaterial(ctx, &models.NewMaterial{
		Name:       name,
		CategoryId: categoryId(t, ctx, category),
		Unit:       models.MaterialUnitPiece,
		UnitPrice:  d("1000"),
	})
	if err != nil {
		t.Fatalf("CreateMaterial %s: %v", name, err)
	}
	if qty != "" && qty != "0" {
		if _, err := models.RecordMaterialIntake(ctx, &models.NewMaterialIntake{MaterialId: m.ID, Quantity: d(qty)}); err != nil {
			t.Fatalf("RecordMaterialIntake %s: %v", name, err)
		}
	}
	return m
}

func balance(t *testing.T, ctx context.Context, pool models.StockPool) decimal.Decimal {
	t.Helper()
	b, err := models.GetBalance(ctx, pool)
	if err != nil {
		t.Fatalf("GetBalance %s: %v", pool, err)
	}
	return b
}

func finishedGood(t *testing.T, ctx context.Context, productId int, color string, stock int) *models.ProductVariant {
	t.Helper()
	v, err := models.CreateProductVariant(ctx, &models.NewProductVariant{ProductId: productId, Color: color, Price: d("1000")})
	if err != nil {
		t.Fatalf("CreateProductVariant: %v", err)
	}
	if stock > 0 {
		if err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			_, err := models.AdjustProductVariantStock(tx, v.ID, stock)
			return err
		}); err != nil {
			t.Fatalf("AdjustProductVariantStock: %v", err)
		}
	}
	return v
}

func variantStock(t *testing.T, ctx context.Context, id int) int {
	t.Helper()
	var v models.ProductVariant
	if err := config.GetDB().WithContext(ctx).First(&v, id).Error; err != nil {
		t.Fatalf("load product variant %d: %v", id, err)
	}
	return v.Stock
}

func productStock(t *testing.T, ctx context.Context, id int) int {
	t.Helper()
	var p models.Product
	if err := config.GetDB().WithContext(ctx).First(&p, id).Error; err != nil {
		t.Fatalf("load product %d: %v", id, err)
	}
	return p.Quantity
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
	// wait until ready
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
	// "127.0.0.1:49154\n"
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
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
