package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amit918/Bookstore-backend/config"
	"github.com/amit918/Bookstore-backend/internal/handler"
	"github.com/amit918/Bookstore-backend/internal/repository"
	"github.com/amit918/Bookstore-backend/internal/server"
	"github.com/amit918/Bookstore-backend/internal/service"
	"github.com/amit918/Bookstore-backend/migrations"
	"github.com/amit918/Bookstore-backend/pkg/kafka"
	"github.com/amit918/Bookstore-backend/pkg/logger"
	"github.com/amit918/Bookstore-backend/pkg/postgres"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "bookstore")
	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %v", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo init %v", err)
	}
	svc := service.NewService(repo, log)

	var queue handler.Enqueuer
	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		log.Warn("kafka.NewProducer: rental events disabled", zap.Error(err))
	} else {
		queue = handler.NewEnqueuer(producer)
	}

	h := handler.New(svc, svc, svc, queue, log)

	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	gg, ctx := errgroup.WithContext(runCtx)
	gg.Go(func() error {
		return srv.Run()
	})
	if producer != nil {
		consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.RentalConsumerGroup)
		if err != nil {
			log.Warn("kafka.NewConsumer: rental event audit disabled", zap.Error(err))
		} else {
			gg.Go(func() error {
				kafka.Consume(ctx, consumer, handler.NewConsumer(svc.SaveRentalEvent, log), log, kafka.RentalTopic)
				return consumer.Close()
			})
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.Error("srv.Stop", zap.Error(err))
	}
	runCancel()
	_ = gg.Wait()
	db.Close()
	log.Info("Graceful shutdown finished")
	return nil
}
