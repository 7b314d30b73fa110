// Package config loads nlopt settings.
//
// Settings come from three places, later ones winning: built-in defaults
// (Default), a YAML file, and NLOPT_* environment variables. A .env file
// in the working directory is loaded into the environment first.
//
// Example nlopt.yaml:
//
//	llm:
//	  provider: openai
//	  model: gpt-4o-mini
//	  temperature: 0
//	  timeout: 90s
//	solver:
//	  time_limit: 60s
//	verifier:
//	  max_unroll: 50
//	  rescue_threshold: 0.75
//	pipeline:
//	  estimator: true
//	store:
//	  path: runs.db
package config
