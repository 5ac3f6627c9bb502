// Copyright 2022 Sogang University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main implements the index server. The index lives in memory only
// and is rebuilt from scratch on every start; the degree of its B-trees and
// the number of partitions are fixed at startup.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/9rum/ordtree/indexer"
	"github.com/9rum/ordtree/internal/btree"
	"github.com/9rum/ordtree/internal/index"
	"github.com/golang/glog"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
)

func main() {
	port := flag.Int("p", 50051, "The server port")
	degree := flag.Int("degree", btree.DefaultDegree, "The minimum degree of the B-trees")
	partitions := flag.Int("partitions", 1, "The number of independently locked index partitions")
	flag.Parse()
	defer glog.Flush()

	if err := serve(*port, *degree, *partitions); err != nil {
		glog.Fatalf("failed to serve: %v", err)
	}
}

func serve(port, degree, partitions int) error {
	idx, err := index.New(degree, partitions)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}

	server := newServer(idx)
	glog.Infof("server listening at %v with degree: %d partitions: %d", lis.Addr(), degree, partitions)

	return server.Serve(lis)
}

func newServer(idx index.Index) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpc_recovery.UnaryServerInterceptor(),
		),
	)
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func(done <-chan os.Signal, server *grpc.Server) {
		sig := <-done
		glog.Infof("received %v, shutting down", sig)
		server.GracefulStop()
	}(done, server)

	indexer.RegisterIndexServer(server, indexer.NewIndexServer(idx))

	return server
}
